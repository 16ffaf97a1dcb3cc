package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionCookie is the platform's session cookie name.
const DefaultSessionCookie = "finwise_session"

const defaultLookupTimeout = 2 * time.Second

type sessionPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// RedisResolver resolves session cookies against the platform's Redis
// session store. Lookups are bounded by a short timeout; a timeout or store
// error is returned as-is so the gate fails closed, never as "no session".
type RedisResolver struct {
	client     *redis.Client
	cookieName string
	timeout    time.Duration
}

// NewRedisResolver constructs a resolver over the shared session store.
func NewRedisResolver(client *redis.Client, cookieName string, timeout time.Duration) *RedisResolver {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &RedisResolver{client: client, cookieName: cookieName, timeout: timeout}
}

// Resolve maps the request's session cookie to the stored session.
func (rr *RedisResolver) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(rr.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, rr.timeout)
	defer cancel()

	raw, err := rr.client.Get(ctx, "session:"+cookie.Value).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("identity: session lookup: %w", err)
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("identity: decode session: %w", err)
	}
	if payload.UserID == "" || payload.Email == "" {
		return nil, ErrNoSession
	}
	userID, err := strconv.ParseInt(payload.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("identity: session user id %q: %w", payload.UserID, err)
	}

	return &Session{UserID: userID, Email: payload.Email}, nil
}

var _ Resolver = (*RedisResolver)(nil)
