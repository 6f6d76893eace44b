package exam

import (
	"encoding/json"
	"strconv"
)

// legacyDocument accepts both the current tag-keyed shape and older documents
// grouped by a numeric year.
type legacyDocument struct {
	Test
	Year *int `json:"year,omitempty"`
}

// DecodeDocument parses a stored Test document, mapping a legacy year into
// the tag space. Only the tag form is ever written back.
func DecodeDocument(data []byte) (Test, error) {
	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Test{}, err
	}
	t := doc.Test
	if t.Tag == "" && doc.Year != nil {
		t.Tag = strconv.Itoa(*doc.Year)
	}
	return t, nil
}

// EncodeDocument is the inverse of DecodeDocument for the current schema.
func EncodeDocument(t Test) ([]byte, error) {
	return json.Marshal(t)
}
