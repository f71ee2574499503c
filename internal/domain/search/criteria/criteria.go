// Package criteria parses and validates serialized search criteria.
//
// A criteria string is the URL-encoded key/value form a search page submits,
// and is also the format alert queries are persisted in. Parsing it yields a
// CleanData record; CleanData re-encodes to an equivalent criteria string, so
// stored alert queries survive a parse/encode round trip.
package criteria

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caselens/lexalert/internal/domain"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// MaxQueryLength is the maximum allowed free-text query length.
const MaxQueryLength = 2500

// DateLayout is the wire format for date bounds in a criteria string.
const DateLayout = "2006-01-02"

// CleanData is the validated, typed projection of submitted search criteria.
// A zero time.Time means the corresponding bound was not supplied.
type CleanData struct {
	query        string
	searchType   searchtype.Type
	courts       []string
	judge        string
	caseName     string
	docketNumber string
	filedAfter   time.Time
	filedBefore  time.Time
	arguedAfter  time.Time
	arguedBefore time.Time
	orderBy      string
}

// Parse validates a raw URL-encoded criteria string into CleanData.
// Missing fields are defaulted; invalid enum values or malformed dates
// reject the whole record with domain.ErrValidation.
func Parse(raw string) (CleanData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return CleanData{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	cd := CleanData{
		query:        strings.TrimSpace(values.Get("q")),
		judge:        strings.TrimSpace(values.Get("judge")),
		caseName:     strings.TrimSpace(values.Get("case_name")),
		docketNumber: strings.TrimSpace(values.Get("docket_number")),
		orderBy:      strings.TrimSpace(values.Get("order_by")),
	}

	if len(cd.query) > MaxQueryLength {
		return CleanData{}, fmt.Errorf("%w: q exceeds %d characters", domain.ErrValidation, MaxQueryLength)
	}

	st := searchtype.Type(values.Get("type"))
	if st == "" {
		st = searchtype.Opinion
	}
	if !st.IsValid() {
		return CleanData{}, fmt.Errorf("%w: unknown type %q", domain.ErrValidation, string(st))
	}
	cd.searchType = st

	if court := strings.TrimSpace(values.Get("court")); court != "" {
		cd.courts = strings.Fields(court)
	}

	dates := []struct {
		key string
		dst *time.Time
	}{
		{"filed_after", &cd.filedAfter},
		{"filed_before", &cd.filedBefore},
		{"argued_after", &cd.arguedAfter},
		{"argued_before", &cd.arguedBefore},
	}
	for _, d := range dates {
		v := strings.TrimSpace(values.Get(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.Parse(DateLayout, v)
		if err != nil {
			return CleanData{}, fmt.Errorf("%w: %s is not a valid date: %q", domain.ErrValidation, d.key, v)
		}
		*d.dst = parsed
	}

	return cd, nil
}

// Encode serializes CleanData back to a URL-encoded criteria string.
// Parse(cd.Encode()) yields an equal CleanData.
func (cd CleanData) Encode() string {
	values := url.Values{}
	values.Set("type", string(cd.searchType))
	if cd.query != "" {
		values.Set("q", cd.query)
	}
	if len(cd.courts) > 0 {
		values.Set("court", strings.Join(cd.courts, " "))
	}
	if cd.judge != "" {
		values.Set("judge", cd.judge)
	}
	if cd.caseName != "" {
		values.Set("case_name", cd.caseName)
	}
	if cd.docketNumber != "" {
		values.Set("docket_number", cd.docketNumber)
	}
	setDate := func(key string, t time.Time) {
		if !t.IsZero() {
			values.Set(key, t.Format(DateLayout))
		}
	}
	setDate("filed_after", cd.filedAfter)
	setDate("filed_before", cd.filedBefore)
	setDate("argued_after", cd.arguedAfter)
	setDate("argued_before", cd.arguedBefore)
	if cd.orderBy != "" {
		values.Set("order_by", cd.orderBy)
	}
	return values.Encode()
}

// Query returns the free-text query.
func (cd CleanData) Query() string { return cd.query }

// SearchType returns the document type searched.
func (cd CleanData) SearchType() searchtype.Type { return cd.searchType }

// Courts returns the selected court ids.
func (cd CleanData) Courts() []string { return cd.courts }

// Judge returns the judge filter value.
func (cd CleanData) Judge() string { return cd.judge }

// CaseName returns the case name filter value.
func (cd CleanData) CaseName() string { return cd.caseName }

// DocketNumber returns the docket number filter value.
func (cd CleanData) DocketNumber() string { return cd.docketNumber }

// FiledAfter returns the lower filing-date bound (zero if unset).
func (cd CleanData) FiledAfter() time.Time { return cd.filedAfter }

// FiledBefore returns the upper filing-date bound (zero if unset).
func (cd CleanData) FiledBefore() time.Time { return cd.filedBefore }

// ArguedAfter returns the lower argument-date bound (zero if unset).
func (cd CleanData) ArguedAfter() time.Time { return cd.arguedAfter }

// ArguedBefore returns the upper argument-date bound (zero if unset).
func (cd CleanData) ArguedBefore() time.Time { return cd.arguedBefore }

// OrderBy returns the requested ordering token ("" if unset).
func (cd CleanData) OrderBy() string { return cd.orderBy }

// WithoutOrdering returns a copy with the ordering token cleared.
// Percolator queries drop ordering: a registered query matches or it does
// not, and sort directives would leak scoring functions into the stored
// query document.
func (cd CleanData) WithoutOrdering() CleanData {
	cd.orderBy = ""
	return cd
}
