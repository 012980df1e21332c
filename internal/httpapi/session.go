package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies one authenticated terminal. Tokens are minted by the
// upstream auth service; this layer only verifies them. TerminalID doubles as
// the cart session key so each terminal gets its own cart.
type Session struct {
	TenantID   string
	TerminalID string
	Cashier    string
}

var ErrInvalidToken = errors.New("invalid session token")

type SessionManager struct {
	secret []byte
	issuer string
}

func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{secret: []byte(secret), issuer: "apotekpos"}
}

type sessionClaims struct {
	TenantID   string `json:"tenant_id"`
	TerminalID string `json:"terminal_id"`
	Cashier    string `json:"cashier,omitempty"`
	jwt.RegisteredClaims
}

// Issue mints a token for a session. Production deployments get tokens from
// the auth service; this exists for demo mode and tests.
func (m *SessionManager) Issue(session Session, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		TenantID:   session.TenantID,
		TerminalID: session.TerminalID,
		Cashier:    session.Cashier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *SessionManager) Verify(token string) (Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	if claims.TenantID == "" || claims.TerminalID == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{
		TenantID:   claims.TenantID,
		TerminalID: claims.TerminalID,
		Cashier:    claims.Cashier,
	}, nil
}

type sessionContextKey struct{}

func contextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func sessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}
