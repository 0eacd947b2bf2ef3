package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mathfly-quiz-service/internal/domain"
)

// Claims are the token fields the service relies on. Subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed bearer tokens issued by the identity provider.
type Verifier struct {
	secretKey []byte
	now       func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secretKey: []byte(secret), now: time.Now}
}

// Authenticate returns the identity carried by token.
func (v *Verifier) Authenticate(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secretKey, nil
		},
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return domain.Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

// Issue signs a token for identity; used by tooling and tests.
func (v *Verifier) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	if !identity.Authenticated() {
		return "", domain.ErrNotAuthenticated
	}
	now := v.now()
	claims := Claims{
		Name: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
}

// FromRequest authenticates the bearer token in the Authorization header or,
// for websocket upgrades, the token query parameter.
func (v *Verifier) FromRequest(r *http.Request) (domain.Identity, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return domain.Identity{}, domain.ErrInvalidToken
		}
		token = value
	}
	return v.Authenticate(token)
}
