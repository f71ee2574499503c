package document

import (
	"fmt"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/domain"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Indexes returns the FT index definition for every search type.
func Indexes() []*db.IndexDefinition {
	types := []searchtype.Type{
		searchtype.Opinion,
		searchtype.OralArgument,
		searchtype.Recap,
		searchtype.Dockets,
		searchtype.People,
	}
	defs := make([]*db.IndexDefinition, len(types))
	for i, t := range types {
		defs[i] = indexFor(t)
	}
	return defs
}

func indexFor(t searchtype.Type) *db.IndexDefinition {
	fields := []db.IndexField{
		{Name: "id", Type: db.IndexFieldTag},
		{Name: "caseName", Type: db.IndexFieldText},
		{Name: "docketNumber", Type: db.IndexFieldText, TextNoStem: true},
		{Name: "text", Type: db.IndexFieldText},
		{Name: "court_id", Type: db.IndexFieldTag},
		{Name: "judge", Type: db.IndexFieldTag},
	}

	switch t {
	case searchtype.OralArgument:
		fields = append(fields,
			db.IndexField{Name: "dateArgued", Type: db.IndexFieldNumeric, Sortable: true},
			db.IndexField{Name: "dateReargued", Type: db.IndexFieldNumeric, Sortable: true},
		)
	case searchtype.Opinion:
		fields = append(fields,
			db.IndexField{Name: "dateFiled", Type: db.IndexFieldNumeric, Sortable: true},
			db.IndexField{Name: "cluster_id", Type: db.IndexFieldTag},
		)
	case searchtype.Recap, searchtype.Dockets:
		fields = append(fields,
			db.IndexField{Name: "dateFiled", Type: db.IndexFieldNumeric, Sortable: true},
			db.IndexField{Name: "docket_id", Type: db.IndexFieldTag},
			db.IndexField{Name: "description", Type: db.IndexFieldText},
		)
	case searchtype.People:
		fields = []db.IndexField{
			{Name: "id", Type: db.IndexFieldTag},
			{Name: "name", Type: db.IndexFieldText},
			{Name: "name_reverse", Type: db.IndexFieldTag, Sortable: true},
			{Name: "text", Type: db.IndexFieldText},
			{Name: "court_id", Type: db.IndexFieldTag},
		}
	}

	return &db.IndexDefinition{
		Name:     IndexName(t),
		Prefixes: []string{fmt.Sprintf("%sdoc:%s:", domain.KeyPrefix, t)},
		Fields:   fields,
	}
}
