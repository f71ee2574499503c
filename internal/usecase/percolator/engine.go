package percolator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/db"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/highlight"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	"github.com/caselens/lexalert/internal/logger"
	"github.com/caselens/lexalert/internal/metrics"
)

// Match is one stored query satisfied by a document.
type Match struct {
	AlertID   string
	UserID    string
	AlertName string
	Rate      domalert.Rate
	Type      searchtype.Type
	Document  hit.Document
}

// Engine matches one document against every stored query of its type,
// paging through the registry in fixed-size batches.
type Engine struct {
	entries  EntryPager
	docs     DocumentMatcher
	pageSize int
}

// NewEngine creates a percolation engine.
func NewEngine(entries EntryPager, docs DocumentMatcher, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Engine{entries: entries, docs: docs, pageSize: pageSize}
}

// Percolate returns every stored query the document satisfies, with alert
// highlighting applied to the matched document's fields. Failures degrade to
// fewer matches instead of an error: a notification pipeline run must not
// abort because one stored query or one page probe failed.
func (e *Engine) Percolate(ctx context.Context, t searchtype.Type, docID string) []Match {
	log := logger.FromContext(ctx)

	hl := &db.HighlightSpec{
		Fields:   highlight.FieldsFor(t, true),
		OpenTag:  highlight.AlertTag,
		CloseTag: highlight.AlertTag,
	}

	var matches []Match
	offset := 0
	for {
		page, total, err := e.entries.Page(ctx, t, offset, e.pageSize)
		if err != nil {
			log.Error("percolator page fetch failed",
				zap.String("type", string(t)), zap.Int("offset", offset), zap.Error(err))
			metrics.PercolationsTotal.WithLabelValues(string(t), "error").Inc()
			return matches
		}

		for _, entry := range page {
			if entry.Rate == domalert.RateOff || entry.Query == "" {
				continue
			}
			doc, err := e.docs.Match(ctx, t, docID, entry.Query, hl)
			if err != nil {
				if errors.Is(err, db.ErrBadQuery) {
					log.Warn("stored query rejected by engine",
						zap.String("alert_id", entry.AlertID), zap.Error(err))
				} else {
					log.Error("document match probe failed",
						zap.String("alert_id", entry.AlertID), zap.Error(err))
				}
				continue
			}
			if doc == nil {
				continue
			}
			matches = append(matches, Match{
				AlertID:   entry.AlertID,
				UserID:    entry.UserID,
				AlertName: entry.AlertName,
				Rate:      entry.Rate,
				Type:      entry.Type,
				Document:  *doc,
			})
		}

		offset += e.pageSize
		if offset >= total || len(page) == 0 {
			break
		}
	}

	metrics.PercolationsTotal.WithLabelValues(string(t), "ok").Inc()
	metrics.PercolatorMatchesTotal.Add(float64(len(matches)))
	return matches
}
