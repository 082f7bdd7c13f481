package platform

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

// CredentialSaver stores refreshed credentials for an account.
type CredentialSaver func(ctx context.Context, account *models.PlatformAccount, creds Credentials) error

func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
		TokenType:    "Bearer",
	}
}

func CredentialsFromToken(t *oauth2.Token) Credentials {
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

type persistingTokenSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

// PersistingTokenSource calls save whenever base hands out a token that
// differs from the previous one, so rotated refresh tokens survive restarts.
func PersistingTokenSource(base oauth2.TokenSource, initial *oauth2.Token, save func(*oauth2.Token)) oauth2.TokenSource {
	last := ""
	if initial != nil {
		last = initial.AccessToken
	}
	return &persistingTokenSource{base: base, save: save, last: last}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()

	if changed && s.save != nil {
		s.save(tok)
	}
	return tok, nil
}

// ClassifyTokenError maps a token refresh failure. A rejected refresh is an
// auth failure; anything else is transient.
func ClassifyTokenError(p models.Platform, err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if kind, failed := ClassifyStatus(re.Response.StatusCode); failed && kind == KindTransient {
			return Transient(p, "token", err)
		}
		return Auth(p, "token", err)
	}
	return Transient(p, "token", err)
}

// BearerAuthorizer sets the Authorization header from ts.
func BearerAuthorizer(p models.Platform, ts oauth2.TokenSource) func(*http.Request) error {
	return func(req *http.Request) error {
		tok, err := ts.Token()
		if err != nil {
			return ClassifyTokenError(p, err)
		}
		tok.SetAuthHeader(req)
		return nil
	}
}
