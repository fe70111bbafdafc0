package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload the gateway understands. Workspace membership
// and coarse permissions are embedded by the issuing identity service.
type Claims struct {
	UserID      string   `json:"userId"`
	Workspaces  []string `json:"workspaces"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTResolver validates an HMAC-signed bearer token and builds a Principal
// from its claims. Selected instead of HeaderResolver when a signing secret
// is configured.
type JWTResolver struct {
	secretKey []byte
}

// NewJWTResolver creates a resolver verifying tokens with the given secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secretKey: []byte(secret)}
}

// Resolve implements PrincipalResolver.
func (j *JWTResolver) Resolve(r *http.Request) (Principal, error) {
	tokenString, err := extractBearerToken(r)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return j.secretKey, nil
		},
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: invalid token: %s", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Principal{}, fmt.Errorf("%w: token carries no user id", ErrUnauthenticated)
	}

	workspaces := make(map[string]struct{}, len(claims.Workspaces))
	for _, ws := range claims.Workspaces {
		if ws != "" {
			workspaces[ws] = struct{}{}
		}
	}
	permissions := make(map[string]struct{}, len(claims.Permissions))
	for _, p := range claims.Permissions {
		if p != "" {
			permissions[p] = struct{}{}
		}
	}

	return Principal{
		UserID:      userID,
		Workspaces:  workspaces,
		Permissions: permissions,
	}, nil
}

// SignToken mints a token for the given identity. Used by tests and by
// deployments that run the gateway standalone in development.
func SignToken(secret, userID string, workspaces []string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:     userID,
		Workspaces: workspaces,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "sse-gateway",
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// EventSource cannot set headers; allow the token as a query param.
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header missing")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimPrefix(authHeader, bearerPrefix), nil
}
