package api

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"tasksync/session"
)

const (
	envAuth0TestMode   = "AUTH0_TEST_MODE"
	envTestJWTSecret   = "TEST_JWT_SECRET"
	envLocalAuthMode   = "LOCAL_AUTH_MODE"
	envLocalAuthSecret = "LOCAL_AUTH_SHARED_SECRET"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// Identity is the authenticated principal behind a push connection or request.
type Identity struct {
	Subject string
	Role    session.Role
}

// Auth validates incoming JWT tokens.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser *jwt.Parser
}

// NewAuth creates a new Auth instance. With LOCAL_AUTH_MODE=hs256 (or the
// older AUTH0_TEST_MODE=1) tokens are verified against a shared secret
// instead of the JWKS.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer}

	if mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode != "" {
		switch mode {
		case "hs256":
			secret := os.Getenv(envLocalAuthSecret)
			if secret == "" {
				panic("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
			}
			a.TestMode = true
			a.TestSecret = []byte(secret)
		default:
			panic("unsupported LOCAL_AUTH_MODE value")
		}
	} else if os.Getenv(envAuth0TestMode) == "1" {
		secret := os.Getenv(envTestJWTSecret)
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
		a.TestMode = true
		a.TestSecret = []byte(secret)
	}

	if a.TestMode {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
	return a
}

// IdentityFromAuthHeader extracts the identity from an Authorization header.
func (a *Auth) IdentityFromAuthHeader(h string, adminHint bool) (Identity, error) {
	if h == "" {
		return Identity{}, errMissingAuthorization
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, errBadAuthorization
	}
	return a.IdentityFromToken(parts[1], adminHint)
}

// IdentityFromToken validates a raw bearer token and derives the identity.
// The token's own role claim classifies the session; adminHint is routing
// convenience and is consulted only when the claim is absent.
func (a *Auth) IdentityFromToken(tokenStr string, adminHint bool) (Identity, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return Identity{}, errBadAuthorization
	}

	var token *jwt.Token
	var err error
	if a.TestMode {
		token, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.TestSecret, nil
		})
	} else {
		if a.JWKS == nil {
			return Identity{}, errors.New("jwks not configured")
		}
		token, err = a.parser.Parse(tokenStr, a.JWKS.Keyfunc)
	}
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return Identity{}, errors.New("token not valid yet")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return Identity{}, errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return Identity{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("missing sub")
	}

	role := session.RoleUser
	if claim, ok := claims["role"].(string); ok && claim != "" {
		switch claim {
		case string(session.RoleAdmin):
			role = session.RoleAdmin
		case string(session.RoleUser):
			role = session.RoleUser
		default:
			return Identity{}, errors.New("unknown role claim")
		}
	} else if adminHint {
		role = session.RoleAdmin
	}

	return Identity{Subject: sub, Role: role}, nil
}
