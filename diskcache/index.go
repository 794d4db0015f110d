/*
Copyright 2026 The rescache Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package diskcache

import (
	"encoding/json"
	"fmt"
)

// record is the persisted form of one index entry.
type record struct {
	Key  string `json:"key"`
	Size uint64 `json:"size"`
}

// encodeRecords serialises records as a JSON array, in order (LRU-first, as
// preserved by diskcache's caller).
//
// Unlike fluxcd/pkg/cache.Persist's length-prefixed binary framing (key
// length, key bytes, expiry, data length, data bytes, repeated), a
// self-delimiting JSON array lets decodeRecords recover from a single
// malformed element without losing synchronisation with the rest of the
// stream, which tolerating per-record decode failures requires — see
// DESIGN.md.
func encodeRecords(records []record) ([]byte, error) {
	return json.Marshal(records)
}

// decodeRecords decodes an index file's contents into a list of records.
//   - An empty byte slice decodes to an empty, non-erroring list (a
//     zero-byte index file is valid and means "no entries").
//   - A whole-file decode failure (the contents are not a JSON array at
//     all) is reported as an error; the caller treats the index as empty.
//   - A per-record decode failure is not fatal: that element is skipped
//     and decoding continues with the rest of the array. No record is ever
//     synthesised.
func decodeRecords(data []byte) ([]record, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("index is not a valid JSON array: %w", err)
	}

	records := make([]record, 0, len(raw))
	for _, item := range raw {
		var r record
		if err := json.Unmarshal(item, &r); err != nil {
			// Per-record corruption is tolerated: drop this record only.
			continue
		}
		if r.Key == "" {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
