package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMismatch reports that a candidate code does not structurally match
// the compiled pattern. Callers translate it into their own error type.
var ErrMismatch = errors.New("code does not match compiled pattern")

// Components maps placeholder kinds to the substrings extracted from a
// parsed code. Only kinds actually present in the pattern appear.
type Components map[Kind]string

// Parse matches code against the pattern and extracts per-kind
// components. This is the exact inverse of Format for the deterministic
// placeholders; RANDOM and UUID come back as opaque strings.
func (p *Pattern) Parse(code string) (Components, error) {
	p.matcherOnce.Do(p.buildMatcher)

	m := p.matcher.FindStringSubmatch(code)
	if m == nil {
		return nil, fmt.Errorf("%w: %q against %q", ErrMismatch, code, p.template)
	}

	components := make(Components)
	for i, kind := range p.matcherKind {
		// First occurrence wins when a kind repeats.
		if _, seen := components[kind]; !seen {
			components[kind] = m[i+1]
		}
	}
	return components, nil
}

// buildMatcher derives the anchored matching expression from the same
// segment list the formatter consumes, keeping both in lockstep.
func (p *Pattern) buildMatcher() {
	var b strings.Builder
	b.WriteString("^")

	var kinds []Kind
	for _, seg := range p.segments {
		switch seg.Kind {
		case KindLiteral:
			b.WriteString(regexp.QuoteMeta(seg.Text))
			continue
		case KindType, KindLocation:
			b.WriteString("([A-Za-z0-9]+)")
		case KindDate:
			b.WriteString("([A-Za-z0-9]+)")
		case KindTime, KindSequence:
			b.WriteString(`(\d+)`)
		case KindRandom:
			fmt.Fprintf(&b, "([A-Za-z0-9]{%s})", seg.Param)
		case KindUUID:
			b.WriteString("([0-9a-fA-F-]{36})")
		}
		kinds = append(kinds, seg.Kind)
	}

	b.WriteString("$")
	p.matcher = regexp.MustCompile(b.String())
	p.matcherKind = kinds
}
