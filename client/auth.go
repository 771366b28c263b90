package client

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/ilp3/internal/clock"
	"github.com/totegamma/ilp3/token"
)

// AuthResolver turns a connector URI with an embedded credential into a
// bare endpoint and a bearer value.
type AuthResolver struct {
	window time.Duration
	clock  clock.Clock
	cache  *cache.Cache
}

// plainCredential marks cached credentials that did not decode as tokens.
type plainCredential struct{}

func NewAuthResolver(window time.Duration, clk clock.Clock) *AuthResolver {
	if clk == nil {
		clk = clock.Real()
	}
	return &AuthResolver{
		window: window,
		clock:  clk,
		cache:  cache.New(10*time.Minute, 15*time.Minute),
	}
}

// Resolve strips the user-info from connector and returns it as a bearer
// value. Credentials that decode as tokens are narrowed with a
// "time < now+window" caveat first; anything else is passed through
// unchanged. An empty bearer means no Authorization header should be sent.
func (r *AuthResolver) Resolve(connector string) (string, string, error) {
	u, err := url.Parse(connector)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid connector uri")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", errors.Errorf("invalid connector uri: missing scheme or host")
	}

	var credential string
	if u.User != nil {
		credential = u.User.Username()
		if password, ok := u.User.Password(); ok && password != "" {
			credential += ":" + password
		}
	}
	u.User = nil
	endpoint := u.String()

	if credential == "" {
		return endpoint, "", nil
	}

	tok := r.lookup(credential)
	if tok == nil {
		slog.Debug("credential is not a token, using plain bearer")
		return endpoint, credential, nil
	}

	expiry := r.clock.Now().Add(r.window)
	caveated, err := tok.WithCaveat(token.TimeBefore(expiry))
	if err != nil {
		return "", "", errors.Wrap(err, "caveat token")
	}
	bearer, err := caveated.Encode()
	if err != nil {
		return "", "", err
	}
	slog.Debug("added time caveat to token", slog.Time("expiry", expiry))
	return endpoint, bearer, nil
}

func (r *AuthResolver) lookup(credential string) *token.Token {
	h := xxh3.HashString128(credential)
	key := fmt.Sprintf("%016x%016x", h.Hi, h.Lo)

	x, found := r.cache.Get(key)
	if found {
		if tok, ok := x.(*token.Token); ok {
			return tok
		}
		return nil
	}

	tok, err := token.Decode(credential)
	if err != nil {
		r.cache.Set(key, plainCredential{}, cache.DefaultExpiration)
		return nil
	}
	r.cache.Set(key, tok, cache.DefaultExpiration)
	return tok
}
