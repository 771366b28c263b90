package token

import (
	"github.com/pkg/errors"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/internal/clock"
)

// Evaluator decides whether a single caveat holds. It is called once per
// caveat, in order, and must not keep state between calls.
type Evaluator interface {
	Evaluate(c Caveat) error
}

type EvaluatorFunc func(c Caveat) error

func (f EvaluatorFunc) Evaluate(c Caveat) error { return f(c) }

// NewEvaluator returns the standard evaluator. It knows time bounds and
// rejects every other kind of caveat.
func NewEvaluator(clk clock.Clock) Evaluator {
	if clk == nil {
		clk = clock.Real()
	}
	return EvaluatorFunc(func(c Caveat) error {
		switch c.Kind {
		case KindTimeBefore:
			if !clk.Now().Before(c.Expiry) {
				return ilp3.ErrExpired
			}
			return nil
		default:
			return ilp3.ErrUnsupportedCaveat
		}
	})
}

// Verify checks an encoded token against secret and returns the identifier
// it was issued for. Every failure is an *ilp3.AuthError whose Reason is
// one of the ilp3.Err* sentinels.
func Verify(encoded string, secret []byte, ev Evaluator) (string, error) {
	t, err := Decode(encoded)
	if err != nil {
		return "", ilp3.Unauthorized(ilp3.ErrMalformedToken)
	}

	identifier := t.Identifier()

	if _, err := t.m.VerifySignature(secret, nil); err != nil {
		return "", ilp3.Unauthorized(ilp3.ErrSignatureMismatch)
	}

	for _, c := range t.Caveats() {
		if err := ev.Evaluate(c); err != nil {
			if errors.Is(err, ilp3.ErrExpired) || errors.Is(err, ilp3.ErrUnsupportedCaveat) {
				return "", ilp3.Unauthorized(err)
			}
			return "", ilp3.Unauthorized(errors.Wrap(ilp3.ErrUnsupportedCaveat, err.Error()))
		}
	}

	return identifier, nil
}
