// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package mediatype

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MarshalJSON encodes m as a JSON string.
func (m MediaType) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a JSON string holding a media type. JSON null leaves
// m unchanged.
func (m *MediaType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) == 0 || data[0] != '"' {
		return &DecodeError{Value: string(data), Err: ErrNotString}
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &DecodeError{Value: string(data), Err: err}
	}
	parsed, err := Parse(s)
	if err != nil {
		return &DecodeError{Value: string(data), Err: err}
	}
	*m = parsed
	return nil
}
