package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/torbel/Interflow/internal/domain"
)

// TokenProvider — стратегия получения токена для auth-адаптера.
//
// Провайдер не кеширует ничего сам: кеширование и single-flight —
// ответственность TokenCache.
type TokenProvider interface {
	FetchToken(ctx context.Context) (Token, error)
}

// providerFor строит провайдера по типу credential.
func providerFor(cred *domain.Credential) (TokenProvider, error) {
	switch cred.Type {
	case domain.CredentialOAuth2Client:
		return newOAuthProvider(cred)
	case domain.CredentialJWTAssertion:
		return newJWTProvider(cred)
	default:
		return nil, fmt.Errorf("%w: credential type %q is not an auth adapter",
			ErrAuthentication, cred.Type)
	}
}

// oauthProvider — OAuth2 client credentials grant.
type oauthProvider struct {
	cfg clientcredentials.Config
}

func newOAuthProvider(cred *domain.Credential) (*oauthProvider, error) {
	tokenURL := cred.Get("token_url")
	if tokenURL == "" {
		return nil, fmt.Errorf("%w: credential %s: token_url is required",
			ErrAuthentication, cred.Name)
	}
	return &oauthProvider{
		cfg: clientcredentials.Config{
			ClientID:     cred.Get("client_id"),
			ClientSecret: cred.Get("client_secret"),
			TokenURL:     tokenURL,
			Scopes:       strings.Fields(cred.Get("scopes")),
		},
	}, nil
}

// FetchToken запрашивает токен у authorization server.
func (p *oauthProvider) FetchToken(ctx context.Context) (Token, error) {
	tok, err := p.cfg.Token(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return Token{
		Value:     tok.AccessToken,
		Type:      tok.TokenType,
		ExpiresAt: tok.Expiry,
	}, nil
}

// jwtProvider — самоподписанный JWT assertion.
//
// Подписывает короткоживущий токен ключом из credential; внешняя
// система валидирует подпись тем же ключом. Используется для
// service-to-service интеграций без authorization server.
type jwtProvider struct {
	key      []byte
	issuer   string
	audience string
	subject  string
	ttl      time.Duration
}

const defaultAssertionTTL = 5 * time.Minute

func newJWTProvider(cred *domain.Credential) (*jwtProvider, error) {
	key := cred.Get("signing_key")
	if key == "" {
		return nil, fmt.Errorf("%w: credential %s: signing_key is required",
			ErrAuthentication, cred.Name)
	}

	ttl := defaultAssertionTTL
	if raw := cred.Get("ttl_sec"); raw != "" {
		sec, err := strconv.Atoi(raw)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("%w: credential %s: invalid ttl_sec %q",
				ErrAuthentication, cred.Name, raw)
		}
		ttl = time.Duration(sec) * time.Second
	}

	return &jwtProvider{
		key:      []byte(key),
		issuer:   cred.Get("issuer"),
		audience: cred.Get("audience"),
		subject:  cred.Get("subject"),
		ttl:      ttl,
	}, nil
}

// FetchToken подписывает новый assertion.
func (p *jwtProvider) FetchToken(_ context.Context) (Token, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   p.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return Token{}, fmt.Errorf("%w: sign assertion: %v", ErrAuthentication, err)
	}

	return Token{
		Value:     signed,
		Type:      "Bearer",
		ExpiresAt: now.Add(p.ttl),
	}, nil
}
