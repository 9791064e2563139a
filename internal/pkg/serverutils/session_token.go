package serverutils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookieName = "session_token"
	LocalsSessionId   = "session_id"
)

var ErrMissingSessionToken = errors.New("missing session token")

// SessionTokens issues and verifies the client-held pointer to the current session.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionTokens(secret string, ttl time.Duration) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), ttl: ttl}
}

func (t *SessionTokens) Issue(sessionId string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": sessionId,
		"iat":        now.Unix(),
		"exp":        now.Add(t.ttl).Unix(),
	})
	return token.SignedString(t.secret)
}

func (t *SessionTokens) Parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(tk *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid session token claims")
	}
	sessionId, _ := claims["session_id"].(string)
	if sessionId == "" {
		return "", errors.New("session token carries no session")
	}
	return sessionId, nil
}

// SetCookie issues a token for sessionId and stores it as the session cookie.
// The token is returned for clients that prefer the Authorization header.
func (t *SessionTokens) SetCookie(ctx *fiber.Ctx, sessionId string) (string, error) {
	token, err := t.Issue(sessionId)
	if err != nil {
		return "", err
	}
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(t.ttl),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return token, nil
}

func (t *SessionTokens) ClearCookie(ctx *fiber.Ctx) {
	ctx.ClearCookie(SessionCookieName)
}

// Middleware requires a session token (Bearer header or cookie) and stores
// its session id in Locals under LocalsSessionId.
func (t *SessionTokens) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := ""
		if authHeader := ctx.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = authHeader[7:]
		} else {
			tokenStr = ctx.Cookies(SessionCookieName)
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, ErrMissingSessionToken.Error()))
		}

		sessionId, err := t.Parse(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
		}

		ctx.Locals(LocalsSessionId, sessionId)
		return ctx.Next()
	}
}

// CurrentSessionId reads the id stored by Middleware.
func CurrentSessionId(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(LocalsSessionId).(string)
	return id
}
