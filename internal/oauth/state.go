// Package oauth handles provider authorization: signed state round-trips
// and the token-exchange callbacks that persist credentials per team.
package oauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultStateTTL = 15 * time.Minute

// ErrInvalidState is returned when a callback state fails verification.
var ErrInvalidState = errors.New("invalid oauth state")

type stateClaims struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies the OAuth state parameter. The state is
// a short-lived signed token carrying the team and requesting user through
// the provider's authorize redirect, so the callback can bind the returned
// code to the right workspace without a server-side session.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		ttl:    defaultStateTTL,
		now:    time.Now,
	}
}

// Sign issues a state token for the given team and user.
func (s *StateSigner) Sign(teamID, userID string) (string, error) {
	now := s.now()
	claims := stateClaims{
		TeamID: teamID,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a state token and returns the
// team and user it was issued for.
func (s *StateSigner) Verify(state string) (teamID, userID string, err error) {
	var claims stateClaims
	_, err = jwt.ParseWithClaims(state, &claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.TeamID == "" {
		return "", "", fmt.Errorf("%w: missing team", ErrInvalidState)
	}
	return claims.TeamID, claims.UserID, nil
}
