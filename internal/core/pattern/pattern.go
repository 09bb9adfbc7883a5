// Package pattern compiles code templates into a segment list shared by
// the formatter and the parser. A template mixes literal text with typed
// placeholders: {TYPE}, {LOCATION}, {DATE[:fmt]}, {TIME[:fmt]},
// {SEQUENCE[:width]}, {RANDOM:length}, {UUID}.
//
// Compilation is deterministic and cached by template string, so both
// directions (format and parse) always operate on the same representation.
package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Kind identifies a placeholder type.
type Kind string

const (
	KindLiteral  Kind = "LITERAL"
	KindType     Kind = "TYPE"
	KindLocation Kind = "LOCATION"
	KindDate     Kind = "DATE"
	KindTime     Kind = "TIME"
	KindSequence Kind = "SEQUENCE"
	KindRandom   Kind = "RANDOM"
	KindUUID     Kind = "UUID"
)

// Segment is one literal run or placeholder of a compiled pattern.
type Segment struct {
	Kind  Kind
	Text  string // literal text, set only for KindLiteral
	Param string // raw placeholder parameter, empty when absent
}

// Placeholder reports whether the segment substitutes anything.
func (s Segment) Placeholder() bool { return s.Kind != KindLiteral }

// Pattern is an immutable compiled template.
type Pattern struct {
	template string
	segments []Segment

	matcherOnce sync.Once
	matcher     *regexp.Regexp
	matcherKind []Kind // placeholder kind per capturing group, in order
}

// Template returns the source template string.
func (p *Pattern) Template() string { return p.template }

// Segments returns the compiled segment list.
func (p *Pattern) Segments() []Segment { return p.segments }

// Has reports whether any placeholder of the given kind appears.
func (p *Pattern) Has(kind Kind) bool {
	for _, s := range p.segments {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// DateParam returns the parameter of the first DATE placeholder and
// whether a DATE placeholder exists at all. Counter keys derive their
// reset cadence from this.
func (p *Pattern) DateParam() (string, bool) {
	for _, s := range p.segments {
		if s.Kind == KindDate {
			return s.Param, true
		}
	}
	return "", false
}

// placeholderRe matches known placeholders only. Unknown kinds fall
// through as literal text, which keeps old templates valid when new
// kinds are added.
var placeholderRe = regexp.MustCompile(`\{(TYPE|LOCATION|DATE|TIME|SEQUENCE|RANDOM|UUID)(?::([^{}]+))?\}`)

type cacheEntry struct {
	p   *Pattern
	err error
}

var compileCache sync.Map // template string -> cacheEntry

// Compile parses a template into a Pattern. The same template always
// compiles identically; results (including errors) are cached.
func Compile(template string) (*Pattern, error) {
	if v, ok := compileCache.Load(template); ok {
		e := v.(cacheEntry)
		return e.p, e.err
	}

	p, err := compile(template)
	compileCache.Store(template, cacheEntry{p: p, err: err})
	return p, err
}

// MustCompile is Compile that panics on error. Use for constants and tests.
func MustCompile(template string) *Pattern {
	p, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return p
}

func compile(template string) (*Pattern, error) {
	var segments []Segment
	last := 0

	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Kind: KindLiteral, Text: template[last:loc[0]]})
		}

		kind := Kind(template[loc[2]:loc[3]])
		param := ""
		if loc[4] >= 0 {
			param = template[loc[4]:loc[5]]
		}

		if err := validateParam(kind, param); err != nil {
			return nil, fmt.Errorf("compile %q: %w", template, err)
		}

		segments = append(segments, Segment{Kind: kind, Param: param})
		last = loc[1]
	}

	if last < len(template) {
		segments = append(segments, Segment{Kind: KindLiteral, Text: template[last:]})
	}

	return &Pattern{template: template, segments: segments}, nil
}

// validateParam enforces the per-kind parameter rules: RANDOM requires a
// positive length, SEQUENCE may carry a positive width, TYPE, LOCATION
// and UUID take no parameter, DATE and TIME accept any format string.
func validateParam(kind Kind, param string) error {
	switch kind {
	case KindRandom:
		n, err := strconv.Atoi(param)
		if err != nil || n <= 0 {
			return fmt.Errorf("RANDOM requires a positive length parameter, got %q", param)
		}
	case KindSequence:
		if param != "" {
			n, err := strconv.Atoi(param)
			if err != nil || n <= 0 {
				return fmt.Errorf("SEQUENCE width must be a positive integer, got %q", param)
			}
		}
	case KindType, KindLocation, KindUUID:
		if param != "" {
			return fmt.Errorf("%s takes no parameter, got %q", kind, param)
		}
	}
	return nil
}

// DateLayout converts a symbolic date/time format (Y, y, m, d, H, i, s,
// plus literal separators) into a Go time layout. The second return is
// false when the format contains no recognized verbs, which callers
// treat as an un-parseable format and fall back to their default.
func DateLayout(format string) (string, bool) {
	var b strings.Builder
	found := false

	for _, r := range format {
		switch r {
		case 'Y':
			b.WriteString("2006")
			found = true
		case 'y':
			b.WriteString("06")
			found = true
		case 'm':
			b.WriteString("01")
			found = true
		case 'n':
			b.WriteString("1")
			found = true
		case 'd':
			b.WriteString("02")
			found = true
		case 'j':
			b.WriteString("2")
			found = true
		case 'H', 'G':
			b.WriteString("15")
			found = true
		case 'i':
			b.WriteString("04")
			found = true
		case 's':
			b.WriteString("05")
			found = true
		default:
			b.WriteRune(r)
		}
	}

	return b.String(), found
}
