package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSyntax is wrapped by every SyntaxError so callers can match the whole
// class with errors.Is.
var ErrSyntax = errors.New("query syntax error")

// SyntaxKind classifies why a free-text query was rejected.
type SyntaxKind int

const (
	KindUnbalancedParentheses SyntaxKind = iota + 1
	KindUnbalancedQuotes
	KindBadProximity
	KindBadRequest
)

func (k SyntaxKind) String() string {
	switch k {
	case KindUnbalancedParentheses:
		return "UnbalancedParentheses"
	case KindUnbalancedQuotes:
		return "UnbalancedQuotes"
	case KindBadProximity:
		return "BadProximity"
	default:
		return "BadRequest"
	}
}

// SyntaxError reports a malformed free-text query together with the offending
// input.
type SyntaxError struct {
	Kind  SyntaxKind
	Query string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %q", e.Kind, e.Query)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// proximityToken matches Westlaw and Lexis style connectors such as "/s",
// "/p" and "w/3", which the query grammar does not support.
var proximityToken = regexp.MustCompile(`(?i)(^|\s)(w/\d+|/[sp]|/\d+)(\s|$)`)

// Validate rejects free text the query grammar cannot parse: unbalanced
// parentheses or quotes and proximity connectors.
func Validate(value string) error {
	if unbalancedParens(value) {
		return &SyntaxError{Kind: KindUnbalancedParentheses, Query: value}
	}
	if strings.Count(value, `"`)%2 != 0 {
		return &SyntaxError{Kind: KindUnbalancedQuotes, Query: value}
	}
	if proximityToken.MatchString(value) {
		return &SyntaxError{Kind: KindBadProximity, Query: value}
	}
	return nil
}

// unbalancedParens walks the string tracking nesting depth. Parentheses
// inside quoted phrases are literal and do not count.
func unbalancedParens(s string) bool {
	depth := 0
	quoted := false
	for _, r := range s {
		switch r {
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted {
				depth--
				if depth < 0 {
					return true
				}
			}
		}
	}
	return depth != 0
}

// fieldedDocket captures the value of a docketNumber: lookup so colons inside
// it can be escaped. Docket numbers like 1:21-bk-1234 would otherwise split
// into a bogus nested field lookup.
var fieldedDocket = regexp.MustCompile(`docketNumber:([^ ]+)`)

func escapeFieldedColons(value string) string {
	return fieldedDocket.ReplaceAllStringFunc(value, func(m string) string {
		val := strings.TrimPrefix(m, "docketNumber:")
		if !strings.Contains(val, ":") {
			return m
		}
		return "docketNumber:" + strings.ReplaceAll(val, ":", `\:`)
	})
}
