// Package auth turns a bearer token into the authenticated model.Principal
// that handlers act on. Tokens are issued elsewhere; this package only
// verifies them.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"eventhub/internal/dto"
	"eventhub/internal/model"
)

const principalKey = "eventhub.principal"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("token has no subject")
)

type Config struct {
	Secret string
	Issuer string
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg Config) *Verifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// Verify parses token and returns the principal it names. The identity is
// taken from the user_id claim, falling back to sub.
func (v *Verifier) Verify(token string) (model.Principal, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return model.Principal{}, errors.Join(ErrInvalidToken, err)
	}

	id, _ := claims["user_id"].(string)
	if id == "" {
		id, _ = claims["sub"].(string)
	}
	if id == "" {
		return model.Principal{}, ErrMissingClaim
	}

	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return model.Principal{ID: id, Name: name, Email: email, Role: model.Role(role)}, nil
}

// Middleware rejects requests without a valid bearer token with 401.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			dto.UnauthenticatedError(c, "Authorization header is required")
			return
		}

		p, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				dto.UnauthenticatedError(c, "Access token has expired")
				return
			}
			dto.UnauthenticatedError(c, "Invalid access token")
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

// Sign issues an HS256 token for p. It backs local tooling and tests; the
// production identity provider signs tokens on its own.
func Sign(secret string, p model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": p.ID,
		"sub":     p.ID,
		"name":    p.Name,
		"email":   p.Email,
		"role":    string(p.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
