package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newResolverForTest(t *testing.T) (*RedisResolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisResolver(client, "finwise_session", time.Second), mr
}

func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: "finwise_session", Value: value})
	}
	return r
}

func TestResolveWithoutCookie(t *testing.T) {
	resolver, _ := newResolverForTest(t)
	_, err := resolver.Resolve(context.Background(), requestWithCookie(""))
	if err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	resolver, _ := newResolverForTest(t)
	_, err := resolver.Resolve(context.Background(), requestWithCookie("missing"))
	if err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestResolveValidSession(t *testing.T) {
	resolver, mr := newResolverForTest(t)
	mr.Set("session:abc123", `{"user_id":"42","email":"ops@finwise.io"}`)

	sess, err := resolver.Resolve(context.Background(), requestWithCookie("abc123"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.UserID != 42 || sess.Email != "ops@finwise.io" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestResolveEmptyPayloadIsNoSession(t *testing.T) {
	resolver, mr := newResolverForTest(t)
	mr.Set("session:empty", `{"user_id":"","email":""}`)

	_, err := resolver.Resolve(context.Background(), requestWithCookie("empty"))
	if err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

// A store outage must surface as an error (the gate fails closed), never as
// a silent "no session".
func TestResolveStoreOutageFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	resolver := NewRedisResolver(client, "finwise_session", time.Second)
	mr.Close()

	_, err := resolver.Resolve(context.Background(), requestWithCookie("abc"))
	if err == nil || err == ErrNoSession {
		t.Fatalf("err = %v, want a hard failure", err)
	}
}
