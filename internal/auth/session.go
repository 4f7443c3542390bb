package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

var ErrNoSession = errors.New("no valid session")

type Session struct {
	Subject string
}

// SessionVerifier answers the only question the admin surface asks: is there
// a session or not.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}

// StaticVerifier accepts a single shared admin token.
type StaticVerifier struct {
	token string
}

func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: token}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Session, error) {
	if v.token == "" || token == "" {
		return Session{}, ErrNoSession
	}
	if subtle.ConstantTimeCompare([]byte(v.token), []byte(token)) != 1 {
		return Session{}, ErrNoSession
	}
	return Session{Subject: "admin"}, nil
}
