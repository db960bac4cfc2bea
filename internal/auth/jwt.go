package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSeat = errors.New("invalid seat token")

// SeatClaims ties a token to one slot of one match.
type SeatClaims struct {
	MatchID string `json:"mid"`
	Slot    int    `json:"slot"`
	jwt.RegisteredClaims
}

// SeatSigner issues and verifies the HS256 tokens clients use to take their
// seat back after a reconnect.
type SeatSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSeatSigner(secret []byte, ttl time.Duration) *SeatSigner {
	return &SeatSigner{secret: secret, ttl: ttl, now: time.Now}
}

func (s *SeatSigner) Issue(matchID string, slot int) (string, error) {
	now := s.now()
	claims := SeatClaims{
		MatchID: matchID,
		Slot:    slot,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign seat token: %w", err)
	}
	return signed, nil
}

func (s *SeatSigner) Verify(token string) (string, int, error) {
	t, err := jwt.ParseWithClaims(token, &SeatClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidSeat, err)
	}

	claims, ok := t.Claims.(*SeatClaims)
	if !ok || !t.Valid || claims.MatchID == "" {
		return "", 0, ErrInvalidSeat
	}
	return claims.MatchID, claims.Slot, nil
}
