// Package document holds the ingest-side document value type. A document is
// a flat field map destined for one search index.
package document

import (
	"fmt"

	"github.com/caselens/lexalert/internal/domain"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Document is an indexable record of one search type.
type Document struct {
	id         string
	searchType searchtype.Type
	fields     map[string]string
}

// New validates and constructs a document. Field maps are copied.
func New(id string, t searchtype.Type, fields map[string]string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}
	if !t.IsValid() {
		return Document{}, fmt.Errorf("%w: %q is not a search type", domain.ErrValidation, string(t))
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == "" {
			return Document{}, fmt.Errorf("%w: empty field name", domain.ErrValidation)
		}
		copied[k] = v
	}
	return Document{id: id, searchType: t, fields: copied}, nil
}

func (d Document) ID() string               { return d.id }
func (d Document) Type() searchtype.Type    { return d.searchType }
func (d Document) Field(name string) string { return d.fields[name] }

// Fields returns a copy of the field map.
func (d Document) Fields() map[string]string {
	out := make(map[string]string, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}
