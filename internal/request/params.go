// Package request reads view parameters from a routed URL. Every value
// arrives as a string; malformed numbers are treated as absent.
package request

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/serroba/annotated-docs/internal/highlight"
)

// Query keys.
const (
	KeySection = "section"
	KeyThread  = "thread"
	KeyFrom    = "from"
	KeyTo      = "to"
	KeyVersion = "version"
	KeyMode    = "mode"
)

// ModeDraft selects the live draft instead of a published version.
const ModeDraft = "draft"

// Params are the view parameters of one request.
type Params struct {
	SectionID string
	Thread    *int
	From      *int
	To        *int
	Version   string
	Draft     bool
}

// Parse reads view parameters from q.
func Parse(q url.Values) Params {
	return Params{
		SectionID: q.Get(KeySection),
		Thread:    Number(q.Get(KeyThread)),
		From:      Number(q.Get(KeyFrom)),
		To:        Number(q.Get(KeyTo)),
		Version:   strings.TrimSpace(q.Get(KeyVersion)),
		Draft:     q.Get(KeyMode) == ModeDraft,
	}
}

// FromMap reads view parameters from a flat key/value map, as sent in
// websocket view requests.
func FromMap(m map[string]string) Params {
	q := make(url.Values, len(m))
	for k, v := range m {
		q.Set(k, v)
	}

	return Parse(q)
}

// Number coerces s to an integer. Empty or malformed input yields nil.
func Number(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}

	return &n
}

// Permalink returns the requested permalink range, or nil unless both
// bounds are present.
func (p Params) Permalink() *highlight.Permalink {
	if p.From == nil || p.To == nil {
		return nil
	}

	return &highlight.Permalink{From: *p.From, To: *p.To, Version: p.Version}
}
