package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/identity"
	"github.com/finwise/finwise-admin/internal/ratelimit"
	"github.com/finwise/finwise-admin/internal/rbac"
)

type stubLimiter struct {
	result ratelimit.Result
	err    error
	calls  int
}

func (s *stubLimiter) Check(context.Context, string) (ratelimit.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubResolver struct {
	session *identity.Session
	err     error
	calls   int
}

func (s *stubResolver) Resolve(context.Context, *http.Request) (*identity.Session, error) {
	s.calls++
	return s.session, s.err
}

type stubDirectory struct {
	user *identity.User
	err  error
}

func (s *stubDirectory) FindByEmail(context.Context, string) (*identity.User, error) {
	return s.user, s.err
}

type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(_ context.Context, e audit.Entry) {
	c.entries = append(c.entries, e)
}

func allowAll() *stubLimiter {
	return &stubLimiter{result: ratelimit.Result{
		Allowed: true, Limit: 60, Remaining: 59, ResetAt: time.Now().Add(time.Minute),
	}}
}

func adminUser(role rbac.Role, custom ...rbac.Permission) *identity.User {
	return &identity.User{
		ID:                9,
		Email:             "ops@finwise.io",
		Name:              "Ops",
		Role:              role,
		Status:            identity.StatusActive,
		CustomPermissions: custom,
	}
}

func sessionFor(u *identity.User) *identity.Session {
	return &identity.Session{UserID: u.ID, Email: u.Email}
}

type fixture struct {
	limiter   *stubLimiter
	resolver  *stubResolver
	directory *stubDirectory
	recorder  *captureRecorder
	gate      *Gate
}

func newFixture(user *identity.User) *fixture {
	f := &fixture{
		limiter:   allowAll(),
		resolver:  &stubResolver{},
		directory: &stubDirectory{err: identity.ErrUserNotFound},
		recorder:  &captureRecorder{},
	}
	if user != nil {
		f.resolver.session = sessionFor(user)
		f.directory = &stubDirectory{user: user}
	} else {
		f.resolver.err = identity.ErrNoSession
	}
	f.gate = New(f.limiter, f.resolver, f.directory, f.recorder, nil, nil)
	return f
}

func (f *fixture) do(t *testing.T, opts Options, handler http.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
		}
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	r.RemoteAddr = "198.51.100.7:51234"
	f.gate.Protect(opts)(handler).ServeHTTP(w, r)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v (%s)", err, w.Body.String())
	}
	return w, body
}

func TestRateLimitPrecedesAuthentication(t *testing.T) {
	f := newFixture(nil) // unauthenticated caller
	f.limiter.result = ratelimit.Result{
		Allowed: false, Limit: 60, Remaining: 0, ResetAt: time.Now().Add(30 * time.Second),
	}

	w, body := f.do(t, Options{}, nil)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if body["code"] != CodeRateLimitExceeded {
		t.Fatalf("code = %v, want %s (rate check runs before authentication)", body["code"], CodeRateLimitExceeded)
	}
	if f.resolver.calls != 0 {
		t.Fatal("resolver must not run for a throttled request")
	}
	for _, header := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"} {
		if w.Header().Get(header) == "" {
			t.Fatalf("missing header %s", header)
		}
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining header = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestSkipRateLimitBypassesLimiter(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleAdmin))
	f.limiter.result = ratelimit.Result{Allowed: false, Limit: 60, ResetAt: time.Now()}

	w, _ := f.do(t, Options{SkipRateLimit: true}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if f.limiter.calls != 0 {
		t.Fatal("limiter must not be consulted when skipped")
	}
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(nil)
	w, body := f.do(t, Options{}, nil)
	if w.Code != http.StatusUnauthorized || body["code"] != CodeUnauthenticated {
		t.Fatalf("status=%d code=%v", w.Code, body["code"])
	}
	if body["success"] != false {
		t.Fatal("failure envelope must carry success=false")
	}
}

func TestUserNotFoundIs401(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleAdmin))
	f.directory = &stubDirectory{err: identity.ErrUserNotFound}
	f.gate = New(f.limiter, f.resolver, f.directory, f.recorder, nil, nil)

	w, body := f.do(t, Options{}, nil)
	if w.Code != http.StatusUnauthorized || body["code"] != CodeUserNotFound {
		t.Fatalf("status=%d code=%v, want 401 %s", w.Code, body["code"], CodeUserNotFound)
	}
}

// A lookup failure is never treated as "no record": it terminates as an
// internal error so the gate fails closed.
func TestDirectoryOutageFailsClosed(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleAdmin))
	f.directory = &stubDirectory{err: errors.New("timeout")}
	f.gate = New(f.limiter, f.resolver, f.directory, f.recorder, nil, nil)

	w, body := f.do(t, Options{}, nil)
	if w.Code != http.StatusInternalServerError || body["code"] != CodeInternalError {
		t.Fatalf("status=%d code=%v, want 500 %s", w.Code, body["code"], CodeInternalError)
	}
	if body["requestId"] == "" || body["requestId"] == nil {
		t.Fatal("internal errors must carry the correlation id")
	}
}

// A suspended admin with every permission is rejected on account status,
// before role or permission evaluation.
func TestSuspendedAccountRejectedBeforePermissions(t *testing.T) {
	user := adminUser(rbac.RoleSuperAdmin)
	user.Status = identity.StatusSuspended
	f := newFixture(user)

	w, body := f.do(t, Options{Action: audit.ActionUserList,
		RequiredPermissions: []rbac.Permission{rbac.PermUsersRead}}, nil)

	if w.Code != http.StatusForbidden || body["code"] != CodeAccountInactive {
		t.Fatalf("status=%d code=%v, want 403 %s", w.Code, body["code"], CodeAccountInactive)
	}
	if len(f.recorder.entries) != 1 || f.recorder.entries[0].Status != audit.StatusFailure {
		t.Fatalf("denial must be audited, got %+v", f.recorder.entries)
	}
}

func TestNonAdminRejected(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleUser))
	w, body := f.do(t, Options{}, nil)
	if w.Code != http.StatusForbidden || body["code"] != CodeNotAdmin {
		t.Fatalf("status=%d code=%v", w.Code, body["code"])
	}
}

func TestRoleAllowListRejection(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleAdmin))
	w, body := f.do(t, Options{AllowedRoles: []rbac.Role{rbac.RoleSuperAdmin}}, nil)
	if w.Code != http.StatusForbidden || body["code"] != CodeInsufficientRole {
		t.Fatalf("status=%d code=%v", w.Code, body["code"])
	}
}

func TestModeratorLacksSuspendPermission(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleModerator))

	w, body := f.do(t, Options{
		RequiredPermissions: []rbac.Permission{rbac.PermUsersSuspend},
	}, nil)

	if w.Code != http.StatusForbidden || body["code"] != CodeInsufficientPermissions {
		t.Fatalf("status=%d code=%v", w.Code, body["code"])
	}
	required, ok := body["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "users:suspend" {
		t.Fatalf("required payload = %v, want [users:suspend]", body["required"])
	}
}

func TestAnyPermissionsReportedSeparately(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleModerator))
	w, body := f.do(t, Options{
		AnyPermissions: []rbac.Permission{rbac.PermAdminCreate, rbac.PermAdminRevoke},
	}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := body["requiredAny"].([]any); !ok {
		t.Fatalf("requiredAny payload missing: %v", body)
	}
}

// admin:create is outside the admin role's default set; a custom grant must
// open the door that a plain admin cannot pass.
func TestCustomGrantAdmitsWherePlainAdminFails(t *testing.T) {
	opts := Options{RequiredPermissions: []rbac.Permission{rbac.PermAdminCreate}}

	plain := newFixture(adminUser(rbac.RoleAdmin))
	if w, _ := plain.do(t, opts, nil); w.Code != http.StatusForbidden {
		t.Fatalf("plain admin status = %d, want 403", w.Code)
	}

	granted := newFixture(adminUser(rbac.RoleAdmin, rbac.PermAdminCreate))
	if w, _ := granted.do(t, opts, nil); w.Code != http.StatusOK {
		t.Fatalf("granted admin status = %d, want 200", w.Code)
	}
}

func TestAdmittedRequestCarriesAdminContext(t *testing.T) {
	user := adminUser(rbac.RoleAdmin, rbac.PermAdminCreate)
	f := newFixture(user)

	var got *AdminContext
	w, _ := f.do(t, Options{RequiredPermissions: []rbac.Permission{rbac.PermUsersRead}},
		func(w http.ResponseWriter, r *http.Request) {
			got = AdminFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got == nil {
		t.Fatal("admin context missing from request")
	}
	if got.AdminID != user.ID || got.Email != user.Email || got.Role != rbac.RoleAdmin {
		t.Fatalf("admin context = %+v", got)
	}
	if got.RequestID == "" {
		t.Fatal("request id must be populated")
	}
	if got.IP != "198.51.100.7" {
		t.Fatalf("ip = %q, want port stripped", got.IP)
	}
	if !got.HasPermission(rbac.PermAdminCreate) {
		t.Fatal("effective permissions must include the custom grant")
	}
}

// Nothing escapes the boundary: a panicking handler becomes a structured
// INTERNAL_ERROR response, never a blank 500 from the server.
func TestHandlerPanicBecomesInternalError(t *testing.T) {
	f := newFixture(adminUser(rbac.RoleAdmin))

	w, body := f.do(t, Options{}, func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	if w.Code != http.StatusInternalServerError || body["code"] != CodeInternalError {
		t.Fatalf("status=%d code=%v", w.Code, body["code"])
	}
}

func TestNoAuditForUnidentifiedDenials(t *testing.T) {
	f := newFixture(nil)
	f.do(t, Options{}, nil)
	if len(f.recorder.entries) != 0 {
		t.Fatalf("unauthenticated denial must not audit, got %+v", f.recorder.entries)
	}
}

func TestSkipAuditSuppressesDenialRecords(t *testing.T) {
	user := adminUser(rbac.RoleSuperAdmin)
	user.Status = identity.StatusSuspended
	f := newFixture(user)

	f.do(t, Options{SkipAudit: true}, nil)
	if len(f.recorder.entries) != 0 {
		t.Fatalf("skip-audit denial must not record, got %+v", f.recorder.entries)
	}
}
