package search

import (
	"sort"

	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/query"
)

// GroupByParent rolls a flat list of child hits up under their parent key.
// Each bucket keeps at most topHits children and counts the rest, and
// remembers the maximum of the ordering field across all of its members;
// buckets are then reordered by that maximum in the sort direction.
// Relevance-ordered queries keep the engine's order, where the flat
// descending scores already place each bucket at its best hit. Hits without
// a parent key pass through ungrouped.
func GroupByParent(docs []hit.Document, field string, topHits int, order query.SortSpec) []hit.Document {
	if topHits <= 0 {
		topHits = 1
	}

	type bucket struct {
		doc hit.Document
		max string
	}
	var out []bucket
	index := make(map[string]int)

	for _, d := range docs {
		parentID := d.Fields[field]
		if parentID == "" {
			out = append(out, bucket{doc: d, max: d.Fields[order.Field]})
			continue
		}

		idx, ok := index[parentID]
		if !ok {
			parent := hit.Document{
				ID:         parentID,
				Fields:     d.Fields,
				ChildDocs:  []hit.Document{d},
				ChildCount: 1,
			}
			index[parentID] = len(out)
			out = append(out, bucket{doc: parent, max: d.Fields[order.Field]})
			continue
		}

		out[idx].doc.ChildCount++
		if len(out[idx].doc.ChildDocs) < topHits {
			out[idx].doc.ChildDocs = append(out[idx].doc.ChildDocs, d)
		}
		if v := d.Fields[order.Field]; v > out[idx].max {
			out[idx].max = v
		}
	}

	// Dates are stored as yyyy-mm-dd strings, so lexicographic comparison
	// orders them chronologically.
	if order.Field != "" && order.Field != query.ScoreField {
		sort.SliceStable(out, func(i, j int) bool {
			if order.Desc {
				return out[i].max > out[j].max
			}
			return out[i].max < out[j].max
		})
	}

	result := make([]hit.Document, len(out))
	for i, b := range out {
		result[i] = b.doc
	}
	return result
}
