package token

import (
	"strings"
	"time"

	"github.com/totegamma/ilp3"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTimeBefore
)

const timeBeforePrefix = "time < "

func (k Kind) String() string {
	switch k {
	case KindTimeBefore:
		return "TimeBefore"
	default:
		return "Unknown"
	}
}

// Caveat is one restriction on a token. Only Kind decides how it is
// evaluated; raw keeps the condition text as it appeared on the token.
type Caveat struct {
	Kind   Kind
	Expiry time.Time

	raw string
}

// TimeBefore restricts a token to be used strictly before t.
func TimeBefore(t time.Time) Caveat {
	t = t.UTC().Truncate(time.Millisecond)
	return Caveat{
		Kind:   KindTimeBefore,
		Expiry: t,
		raw:    timeBeforePrefix + ilp3.FormatExpiry(t),
	}
}

// ParseCaveat classifies a condition string. Anything not recognized,
// including a time bound that does not parse, is KindUnknown.
func ParseCaveat(s string) Caveat {
	if rest, ok := strings.CutPrefix(s, timeBeforePrefix); ok {
		expiry, err := ilp3.ParseExpiry(strings.TrimSpace(rest))
		if err == nil {
			return Caveat{Kind: KindTimeBefore, Expiry: expiry, raw: s}
		}
	}
	return Caveat{Kind: KindUnknown, raw: s}
}

func (c Caveat) String() string {
	if c.raw != "" {
		return c.raw
	}
	if c.Kind == KindTimeBefore {
		return timeBeforePrefix + ilp3.FormatExpiry(c.Expiry)
	}
	return ""
}
