// Package gate is the single choke point wrapping every privileged admin
// operation. Each request walks a linear pipeline (rate check,
// authentication, user lookup, account status, role and permission checks),
// short-circuiting on the first failure, and only then reaches the wrapped
// handler with an AdminContext attached. No failure mode grants access:
// collaborator errors and panics all terminate as INTERNAL_ERROR.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/identity"
	"github.com/finwise/finwise-admin/internal/platform/httpx"
	"github.com/finwise/finwise-admin/internal/ratelimit"
	"github.com/finwise/finwise-admin/internal/rbac"
)

// Terminal error codes, each mapping to exactly one response status.
const (
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeUnauthenticated         = "UNAUTHENTICATED"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeAccountInactive         = "ACCOUNT_INACTIVE"
	CodeNotAdmin                = "NOT_ADMIN"
	CodeInsufficientRole        = "INSUFFICIENT_ROLE"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Options configures the gate for one operation.
type Options struct {
	// Action names the operation in audit records of denied requests.
	Action string
	// RequiredPermissions must all be granted (AND).
	RequiredPermissions []rbac.Permission
	// AnyPermissions requires at least one grant (OR).
	AnyPermissions []rbac.Permission
	// AllowedRoles, when set, is an explicit allow-list checked after the
	// admin-role threshold and before permissions.
	AllowedRoles []rbac.Role
	// SkipRateLimit exempts low-risk operations from the window quota.
	SkipRateLimit bool
	// SkipAudit suppresses gate-level audit records for this operation.
	SkipAudit bool
}

// Recorder records audit entries best effort. Satisfied by audit.Logger.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// Metrics counts gate decisions. Satisfied by observability.Metrics.
type Metrics interface {
	ObserveGateDecision(code string)
}

// Gate authenticates, authorizes, rate-limits and audits admin requests.
type Gate struct {
	limiter   ratelimit.Limiter
	resolver  identity.Resolver
	directory identity.Directory
	recorder  Recorder
	logger    *slog.Logger
	metrics   Metrics
}

// New constructs a Gate. recorder and metrics may be nil.
func New(limiter ratelimit.Limiter, resolver identity.Resolver, directory identity.Directory,
	recorder Recorder, logger *slog.Logger, metrics Metrics) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		limiter:   limiter,
		resolver:  resolver,
		directory: directory,
		recorder:  recorder,
		logger:    logger,
		metrics:   metrics,
	}
}

// Protect wraps a handler with the admission pipeline, chi middleware style.
func (g *Gate) Protect(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.admit(w, r, next, opts)
		})
	}
}

func (g *Gate) admit(w http.ResponseWriter, r *http.Request, next http.Handler, opts Options) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ip := clientIP(r)
	userAgent := r.UserAgent()

	// The boundary: nothing escapes uncaught. A panic anywhere below, the
	// wrapped handler included, terminates as INTERNAL_ERROR carrying only
	// the correlation id.
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("admin pipeline panic",
				slog.String("request_id", requestID),
				slog.String("path", r.URL.Path),
				slog.Any("panic", rec))
			g.deny(w, http.StatusInternalServerError, CodeInternalError,
				"Internal server error", map[string]any{"requestId": requestID})
		}
	}()

	// Step 1: rate check, before any identity work.
	if !opts.SkipRateLimit {
		res, err := g.limiter.Check(ctx, ip)
		if err != nil {
			// A broken limiter is treated as absent, not as a denial.
			g.logger.Warn("rate limiter error", slog.String("ip", ip), slog.Any("error", err))
		} else if !res.Allowed {
			g.rejectRateLimited(w, res)
			return
		}
	}

	// Step 2: authentication.
	sess, err := g.resolver.Resolve(ctx, r)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			g.deny(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
			return
		}
		g.internalError(w, requestID, "resolve session", err)
		return
	}

	// Step 3: user lookup. A valid session without a directory record is
	// answered 401, matching the platform's historical contract.
	user, err := g.directory.FindByEmail(ctx, sess.Email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			g.deny(w, http.StatusUnauthorized, CodeUserNotFound, "User not found", nil)
			return
		}
		g.internalError(w, requestID, "find user", err)
		return
	}

	meta := actorMeta{user: user, ip: ip, userAgent: userAgent, requestID: requestID}

	// Step 4: account status, before any privilege evaluation.
	if !user.Status.Active() {
		g.auditDenial(r, opts, meta, CodeAccountInactive)
		g.deny(w, http.StatusForbidden, CodeAccountInactive, "Account is suspended or deleted", nil)
		return
	}

	// Step 5: administrative threshold.
	if !rbac.IsAdminRole(user.Role) {
		g.deny(w, http.StatusForbidden, CodeNotAdmin, "Admin access required", nil)
		return
	}

	// Step 6: explicit role allow-list.
	if len(opts.AllowedRoles) > 0 && !roleAllowed(user.Role, opts.AllowedRoles) {
		g.auditDenial(r, opts, meta, CodeInsufficientRole)
		g.deny(w, http.StatusForbidden, CodeInsufficientRole, "Insufficient role privileges", nil)
		return
	}

	// Step 7: permission checks, required (AND) then any-of (OR).
	if len(opts.RequiredPermissions) > 0 &&
		!rbac.HasAllPermissions(user.Role, opts.RequiredPermissions, user.CustomPermissions) {
		g.auditDenial(r, opts, meta, CodeInsufficientPermissions)
		g.deny(w, http.StatusForbidden, CodeInsufficientPermissions, "Insufficient permissions",
			map[string]any{"required": permissionStrings(opts.RequiredPermissions)})
		return
	}
	if len(opts.AnyPermissions) > 0 &&
		!rbac.HasAnyPermission(user.Role, opts.AnyPermissions, user.CustomPermissions) {
		g.auditDenial(r, opts, meta, CodeInsufficientPermissions)
		g.deny(w, http.StatusForbidden, CodeInsufficientPermissions, "Insufficient permissions",
			map[string]any{"requiredAny": permissionStrings(opts.AnyPermissions)})
		return
	}

	// Step 8: admitted. Attach the context and hand over.
	admin := &AdminContext{
		AdminID:           user.ID,
		Email:             user.Email,
		Name:              user.Name,
		Role:              user.Role,
		CustomPermissions: user.CustomPermissions,
		IP:                ip,
		UserAgent:         userAgent,
		RequestID:         requestID,
	}
	g.observe("allowed")
	next.ServeHTTP(w, r.WithContext(ContextWithAdmin(ctx, admin)))
}

// timeNow is swapped in tests.
var timeNow = time.Now

type actorMeta struct {
	user      *identity.User
	ip        string
	userAgent string
	requestID string
}

func (g *Gate) rejectRateLimited(w http.ResponseWriter, res ratelimit.Result) {
	retryAfter := res.RetryAfter(timeNow())
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	g.deny(w, http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded",
		map[string]any{"retryAfter": retryAfter})
}

func (g *Gate) deny(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	g.observe(code)
	httpx.Error(w, status, code, message, extra)
}

func (g *Gate) internalError(w http.ResponseWriter, requestID, stage string, err error) {
	g.logger.Error("admin gate "+stage, slog.String("request_id", requestID), slog.Any("error", err))
	g.deny(w, http.StatusInternalServerError, CodeInternalError, "Internal server error",
		map[string]any{"requestId": requestID})
}

func (g *Gate) observe(code string) {
	if g.metrics != nil {
		g.metrics.ObserveGateDecision(code)
	}
}

// auditDenial records an authorization denial for an identified actor.
func (g *Gate) auditDenial(r *http.Request, opts Options, meta actorMeta, code string) {
	if g.recorder == nil || opts.SkipAudit {
		return
	}
	action := opts.Action
	if action == "" {
		action = r.Method + " " + r.URL.Path
	}
	g.recorder.Record(r.Context(), audit.Entry{
		ActorID:      meta.user.ID,
		ActorEmail:   meta.user.Email,
		ActorRole:    meta.user.Role,
		Action:       action,
		TargetType:   audit.TargetSystem,
		Description:  fmt.Sprintf("Denied %s: %s", action, code),
		IP:           meta.ip,
		UserAgent:    meta.userAgent,
		RequestID:    meta.requestID,
		Status:       audit.StatusFailure,
		ErrorMessage: code,
	})
}

func roleAllowed(role rbac.Role, allowed []rbac.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func permissionStrings(perms []rbac.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// clientIP returns the request's client address without the port. The outer
// middleware stack applies RealIP first, so RemoteAddr already reflects
// X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
