package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"estate-backend/internal/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed staff session; cookie and Redis format match Express/connect-redis.
// Sessions are issued by the admin backend; this service only reads them.
type SessionConfig struct {
	Secret string
}

const (
	SessionCookieName  = "estate.sid"
	SessionRedisPrefix = "session:"
)

// SessionUser is the shape stored in session under "user".
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type sessionData struct {
	User *SessionUser `json:"user"`
}

// Session loads the session user from Redis into Locals. A missing, unsigned-but-expected or
// unreadable session leaves the user nil; RequireAuth decides what that means.
func Session(rdb *redis.Client, cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, (*SessionUser)(nil))
		sessionID, ok := parseSessionCookie(c.Cookies(SessionCookieName), cfg.Secret)
		if !ok || rdb == nil {
			return c.Next()
		}

		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data sessionData
		if err := json.Unmarshal(b, &data); err != nil {
			log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Msg("session payload unreadable")
			return c.Next()
		}
		if data.User == nil || data.User.UserID == "" {
			return c.Next()
		}
		if !constants.IsValidRole(data.User.Role) {
			log.Warn().Str("trace_id", GetTraceID(c)).Str("role", data.User.Role).Msg("session role unknown, ignoring session")
			return c.Next()
		}
		c.Locals(userLocal, data.User)
		return c.Next()
	}
}

// parseSessionCookie extracts the session id from an Express cookie ("id", "s:id" or "s:id.signature").
// With a secret configured only correctly signed cookies are accepted.
func parseSessionCookie(raw, secret string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "s:") {
		return raw, secret == ""
	}
	id, sig, signed := strings.Cut(raw[2:], ".")
	if id == "" {
		return "", false
	}
	if secret == "" {
		return id, true
	}
	if !signed || !hmac.Equal([]byte(sig), []byte(signSessionID(id, secret))) {
		return "", false
	}
	return id, true
}

// signSessionID matches cookie-signature: base64(HMAC-SHA256(id)) without padding.
func signSessionID(id, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}
