package orders

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/labtrace/lims/pkg/rbac"
	"github.com/labtrace/lims/pkg/types"
)

// tokenClaims is the JWT payload issued by the identity provider. The engine
// trusts the (user, role) pair; authentication itself is out of scope here.
type tokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// userFromRequest extracts the caller's identity from the Authorization
// header. Signature and expiry are verified against the configured secret.
func (s *Service) userFromRequest(r *http.Request) (*types.UserContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing authorization header")
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return nil, fmt.Errorf("authorization header must use Bearer scheme")
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id claim")
	}
	if !rbac.IsKnownRole(types.UserRole(claims.Role)) {
		return nil, fmt.Errorf("unknown role: %s", claims.Role)
	}

	return &types.UserContext{
		UserID: claims.UserID,
		Role:   types.UserRole(claims.Role),
	}, nil
}
