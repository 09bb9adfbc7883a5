package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"codemint/internal/core/entropy"
)

// FormatValues carries everything one Format call substitutes.
// Type and Location are expected upper-cased by the caller; the
// formatter inserts them verbatim.
type FormatValues struct {
	Type     string
	Location string
	Now      time.Time

	// Sequence is the reserved counter value. It is only rendered when
	// Sequential is true; otherwise SEQUENCE placeholders are dropped so
	// no unresolved token leaks into the output.
	Sequence   uint64
	Sequential bool

	// Fallbacks used when a placeholder carries no parameter.
	SequenceWidth int
	DateFormat    string
	TimeFormat    string

	Entropy entropy.Source
}

// Format renders the pattern with the given values. Deterministic for
// TYPE, LOCATION, DATE, TIME and SEQUENCE; RANDOM and UUID consume
// entropy independently per call.
func (p *Pattern) Format(v FormatValues) (string, error) {
	var b strings.Builder

	for _, seg := range p.segments {
		switch seg.Kind {
		case KindLiteral:
			b.WriteString(seg.Text)

		case KindType:
			b.WriteString(v.Type)

		case KindLocation:
			b.WriteString(v.Location)

		case KindDate:
			b.WriteString(v.Now.Format(effectiveLayout(seg.Param, v.DateFormat)))

		case KindTime:
			b.WriteString(v.Now.Format(effectiveLayout(seg.Param, v.TimeFormat)))

		case KindSequence:
			if !v.Sequential {
				continue
			}
			width := v.SequenceWidth
			if seg.Param != "" {
				width, _ = strconv.Atoi(seg.Param) // validated at compile time
			}
			fmt.Fprintf(&b, "%0*d", width, v.Sequence)

		case KindRandom:
			length, _ := strconv.Atoi(seg.Param) // validated at compile time
			s, err := v.Entropy.RandomString(length)
			if err != nil {
				return "", fmt.Errorf("random segment: %w", err)
			}
			b.WriteString(s)

		case KindUUID:
			s, err := v.Entropy.UUID()
			if err != nil {
				return "", fmt.Errorf("uuid segment: %w", err)
			}
			b.WriteString(s)
		}
	}

	return b.String(), nil
}

// effectiveLayout resolves a placeholder's own format against the
// configured fallback. A format with no recognized verbs counts as
// un-parseable and falls back rather than failing.
func effectiveLayout(param, fallback string) string {
	if param != "" {
		if layout, ok := DateLayout(param); ok {
			return layout
		}
	}
	layout, _ := DateLayout(fallback)
	return layout
}
