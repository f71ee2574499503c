package document

import (
	"strconv"
	"time"

	"github.com/caselens/lexalert/internal/db"
	domdoc "github.com/caselens/lexalert/internal/domain/document"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// dateFields are stored as epoch seconds so NUMERIC range filters apply.
var dateFields = map[string]bool{
	"dateFiled":    true,
	"dateArgued":   true,
	"dateReargued": true,
}

const dateLayout = "2006-01-02"

// buildHashFields flattens a document for HSET. The id is duplicated into a
// hash field so match probes can scope on it as a tag.
func buildHashFields(d domdoc.Document) map[string]string {
	fields := d.Fields()
	m := make(map[string]string, len(fields)+1)
	m["id"] = d.ID()
	for k, v := range fields {
		if dateFields[k] && v != "" {
			if t, err := time.Parse(dateLayout, v); err == nil {
				m[k] = strconv.FormatInt(t.UTC().Unix(), 10)
				continue
			}
		}
		m[k] = v
	}
	return m
}

// parseHashFields rebuilds a document, turning epoch dates back into
// calendar dates.
func parseHashFields(id string, t searchtype.Type, m map[string]string) (domdoc.Document, error) {
	fields := make(map[string]string, len(m))
	for k, v := range m {
		if k == "id" {
			continue
		}
		fields[k] = restoreDate(k, v)
	}
	return domdoc.New(id, t, fields)
}

// entryToDocument converts a search entry into a notification document.
func entryToDocument(entry db.SearchEntry, t searchtype.Type) hit.Document {
	fields := make(map[string]string, len(entry.Fields))
	id := docID(t, entry.Key)
	for k, v := range entry.Fields {
		if k == "id" {
			id = v
			continue
		}
		fields[k] = restoreDate(k, v)
	}
	return hit.Document{ID: id, Fields: fields}
}

func restoreDate(field, value string) string {
	if !dateFields[field] || value == "" {
		return value
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return value
	}
	return time.Unix(sec, 0).UTC().Format(dateLayout)
}
