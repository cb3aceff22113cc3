package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/examportal/examportal/internal/rbac"
)

// RememberCookie outlives the short cookie session so "remember me" logins
// can be re-established silently.
const RememberCookie = "remember_token"

var ErrBadRememberToken = errors.New("invalid remember token")

type rememberClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type RememberIssuer struct {
	hmac []byte
	ttl  time.Duration
}

func NewRememberIssuer(secret string, ttl time.Duration) *RememberIssuer {
	return &RememberIssuer{hmac: []byte(secret), ttl: ttl}
}

func (ri *RememberIssuer) Issue(userID int64, role rbac.Role) (string, error) {
	now := time.Now()
	claims := &rememberClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "examportal",
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ri.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(ri.hmac)
}

func (ri *RememberIssuer) Parse(tokenStr string) (int64, rbac.Role, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &rememberClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadRememberToken
		}
		return ri.hmac, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrBadRememberToken
	}
	claims, ok := token.Claims.(*rememberClaims)
	if !ok {
		return 0, "", ErrBadRememberToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, "", ErrBadRememberToken
	}
	role := rbac.Role(claims.Role)
	if !role.Valid() {
		return 0, "", ErrBadRememberToken
	}
	return userID, role, nil
}

func (ri *RememberIssuer) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ri.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearRememberCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
