package auth

import (
	"fmt"
	"time"

	"guidance-lab/domain"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and validates the tokens callers present to prove
// who they are. The key comes from configuration, never from the binary.
type Authenticator struct {
	key []byte
	ttl time.Duration
}

func NewAuthenticator(key []byte, ttl time.Duration) *Authenticator {
	return &Authenticator{key: key, ttl: ttl}
}

// GenerateToken creates a signed JWT for a specific identity.
func (a *Authenticator) GenerateToken(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: identity.ID,
		Role:   string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "guidance-lab",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.key)
}

// ValidateToken parses a JWT string, checks its signature and expiry,
// and maps the claims back to the identity every operation expects.
func (a *Authenticator) ValidateToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, jwt.ErrSignatureInvalid
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleUser, domain.RoleAgent, domain.RoleManager:
	default:
		return domain.Identity{}, fmt.Errorf("unknown role %q in token", claims.Role)
	}
	return domain.Identity{ID: claims.UserID, Role: role}, nil
}
