package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// AuthenticatedUser holds the claims extracted from a validated bearer token
type AuthenticatedUser struct {
	Sub      string
	Iss      string
	ClientId string
	Exp      int64
	Iat      int64
	Aud      []string
	Roles    []string
	Scopes   []string
}

// JwtAuthenticator validates bearer tokens against a remote JWKS endpoint.
// The key set is cached for cacheTTL to keep validation off the hot path.
type JwtAuthenticator struct {
	JwksUri string

	cacheTTL  time.Duration
	mu        sync.Mutex
	cachedSet jwk.Set
	fetchedAt time.Time
}

// NewJwtAuthenticator creates a new JwtAuthenticator for the given JWKS URI
func NewJwtAuthenticator(jwksUri string) *JwtAuthenticator {
	return &JwtAuthenticator{
		JwksUri:  jwksUri,
		cacheTTL: 5 * time.Minute,
	}
}

// ValidateToken verifies the token signature against the JWKS and returns
// the authenticated user claims
func (a *JwtAuthenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	if a.JwksUri == "" {
		return nil, errors.New("JWKS URI not configured")
	}

	set, err := a.fetchKeySet()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc(set))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	return a.mapClaimsToUser(claims)
}

func (a *JwtAuthenticator) fetchKeySet() (jwk.Set, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cachedSet != nil && time.Since(a.fetchedAt) < a.cacheTTL {
		return a.cachedSet, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set, err := jwk.Fetch(ctx, a.JwksUri)
	if err != nil {
		return nil, err
	}

	a.cachedSet = set
	a.fetchedAt = time.Now()
	return set, nil
}

func (a *JwtAuthenticator) keyFunc(set jwk.Set) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		var key jwk.Key
		if kid, ok := token.Header["kid"].(string); ok && kid != "" {
			found, ok := set.LookupKeyID(kid)
			if !ok {
				return nil, fmt.Errorf("key %q not found in JWKS", kid)
			}
			key = found
		} else {
			if set.Len() == 0 {
				return nil, errors.New("JWKS contains no keys")
			}
			first, _ := set.Key(0)
			key = first
		}

		var raw interface{}
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("failed to extract public key: %w", err)
		}
		return raw, nil
	}
}

func (a *JwtAuthenticator) mapClaimsToUser(claims map[string]interface{}) (*AuthenticatedUser, error) {
	user := &AuthenticatedUser{}

	if sub, ok := claims["sub"].(string); ok {
		user.Sub = sub
	}
	if iss, ok := claims["iss"].(string); ok {
		user.Iss = iss
	}
	if clientId, ok := claims["client_id"].(string); ok {
		user.ClientId = clientId
	}
	if exp, ok := claims["exp"].(float64); ok {
		user.Exp = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		user.Iat = int64(iat)
	}

	user.Aud = toStringSlice(claims["aud"])
	user.Roles = toStringSlice(claims["roles"])
	user.Scopes = toStringSlice(claims["scopes"])

	return user, nil
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
