package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The registry speaks camelCase on writes but returns snake_case on several
// read endpoints. Documents are decoded through an alias pass that folds
// snake_case keys onto the declared camelCase json tags, so a payload built
// from either source populates the same struct.

func camelKey(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}

	parts := strings.Split(key, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func decodeAliased(data []byte, v any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	norm := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		norm[camelKey(key)] = value
	}

	buf, err := json.Marshal(norm)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

// Float accepts a JSON number or a numeric string. Spreadsheet-derived rows
// and some registry read endpoints are inconsistent about which they send.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int accepts a JSON number or a numeric string.
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*i = 0
		return nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		// tolerate "2.0" style numbers coming out of spreadsheets
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		*i = Int(fv)
		return nil
	}
	*i = Int(v)
	return nil
}
