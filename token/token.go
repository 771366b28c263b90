// Package token implements caveated bearer tokens on top of macaroons.
//
// A token carries an identifier naming the principal and an ordered list
// of first-party caveats. Anyone holding a token can narrow it by
// appending a caveat; only the holder of the root secret can verify it.
// The root secret never travels with the token.
package token

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/macaroon.v2"

	"github.com/totegamma/ilp3"
)

var ErrShortSecret = errors.Errorf("secret must be at least %d bytes", ilp3.MinSecretLength)

type Token struct {
	m *macaroon.Macaroon
}

// Mint issues a token for identifier, bound to secret.
func Mint(secret []byte, identifier string) (*Token, error) {
	if len(secret) < ilp3.MinSecretLength {
		return nil, ErrShortSecret
	}
	m, err := macaroon.New(secret, []byte(identifier), "", macaroon.LatestVersion)
	if err != nil {
		return nil, errors.Wrap(err, "token.Mint")
	}
	return &Token{m: m}, nil
}

// Decode parses the base64 form of a binary token. Standard and URL-safe
// alphabets are accepted, with or without padding.
func Decode(encoded string) (*Token, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ilp3.ErrMalformedToken
	}
	raw, err := macaroon.Base64Decode([]byte(encoded))
	if err != nil {
		return nil, errors.Wrap(ilp3.ErrMalformedToken, err.Error())
	}
	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(ilp3.ErrMalformedToken, err.Error())
	}
	return &Token{m: &m}, nil
}

// Encode returns the URL-safe, unpadded base64 of the binary export, which
// can be embedded in a URI's user-info as is.
func (t *Token) Encode() (string, error) {
	raw, err := t.m.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "token.Encode")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (t *Token) Identifier() string {
	return string(t.m.Id())
}

// Caveats returns the token's caveats in append order.
func (t *Token) Caveats() []Caveat {
	raw := t.m.Caveats()
	caveats := make([]Caveat, 0, len(raw))
	for _, c := range raw {
		if c.VerificationId != nil {
			caveats = append(caveats, Caveat{Kind: KindUnknown, raw: string(c.Id)})
			continue
		}
		caveats = append(caveats, ParseCaveat(string(c.Id)))
	}
	return caveats
}

// WithCaveat derives a new token restricted by c. t itself is unchanged.
func (t *Token) WithCaveat(c Caveat) (*Token, error) {
	derived := t.m.Clone()
	if err := derived.AddFirstPartyCaveat([]byte(c.String())); err != nil {
		return nil, errors.Wrap(err, "token.WithCaveat")
	}
	return &Token{m: derived}, nil
}
