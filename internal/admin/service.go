package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/gate"
	"github.com/finwise/finwise-admin/internal/identity"
	"github.com/finwise/finwise-admin/internal/rbac"
)

// Recorder accepts audit entries for best effort persistence.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service enforces the management rules of the admin plane: who may touch
// whom, which roles are assignable, and what every change leaves behind in
// the audit trail.
type Service struct {
	repo     RepositoryPort
	recorder Recorder
	logger   *slog.Logger

	now func() time.Time
}

// NewService constructs the admin service.
func NewService(repo RepositoryPort, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// ListUsers returns a filtered page of users.
func (s *Service) ListUsers(ctx context.Context, actor *gate.AdminContext, p ListUsersParams) (*UserPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if p.Role != "" && !rbac.Role(p.Role).Valid() {
		return nil, ErrInvalidRole
	}
	if p.Status != "" && !validStatus(p.Status) {
		return nil, errCode(http.StatusBadRequest, "INVALID_STATUS", "Unknown status filter")
	}

	users, total, err := s.repo.ListUsers(ctx, p)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []identity.User{}
	}
	return &UserPage{
		Users:    users,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasNext:  int64(p.Page*p.PageSize) < total,
	}, nil
}

// GetUser returns one user and records the lookup.
func (s *Service) GetUser(ctx context.Context, actor *gate.AdminContext, id int64) (*identity.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	e := s.entryFor(actor, audit.ActionUserView, user)
	e.Description = fmt.Sprintf("Viewed user %s", user.Email)
	s.recorder.Record(ctx, e)
	return user, nil
}

// UpdateUser applies profile changes to a managed account.
func (s *Service) UpdateUser(ctx context.Context, actor *gate.AdminContext, id int64, in UpdateUserInput) (*identity.User, error) {
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkManageable(actor, target); err != nil {
		return nil, err
	}
	if in.CustomPermissions != nil {
		for _, p := range *in.CustomPermissions {
			if !rbac.Permission(p).Valid() {
				return nil, errCode(http.StatusBadRequest, "INVALID_PERMISSIONS",
					fmt.Sprintf("Unknown permission %q", p))
			}
		}
	}

	previous := map[string]any{
		"name":               target.Name,
		"custom_permissions": target.CustomPermissions,
	}
	if err := s.repo.UpdateUserProfile(ctx, id, in.Name, in.CustomPermissions); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	e := s.entryFor(actor, audit.ActionUserUpdate, updated)
	e.Description = fmt.Sprintf("Updated user %s", updated.Email)
	e.PreviousValue = previous
	e.NewValue = map[string]any{
		"name":               updated.Name,
		"custom_permissions": updated.CustomPermissions,
	}
	s.recorder.Record(ctx, e)
	return updated, nil
}

// SetSuspension suspends or reactivates an account.
func (s *Service) SetSuspension(ctx context.Context, actor *gate.AdminContext, id int64, in SuspendInput) (*identity.User, error) {
	if in.Action != "suspend" && in.Action != "unsuspend" {
		return nil, ErrInvalidAction
	}
	if actor != nil && actor.AdminID == id {
		return nil, ErrSelfTarget
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkManageable(actor, target); err != nil {
		return nil, err
	}

	var (
		status identity.Status
		action string
	)
	switch in.Action {
	case "suspend":
		if target.Status == identity.StatusSuspended {
			return nil, ErrAlreadySuspended
		}
		status, action = identity.StatusSuspended, audit.ActionUserSuspend
	case "unsuspend":
		if target.Status != identity.StatusSuspended {
			return nil, ErrNotSuspended
		}
		status, action = identity.StatusActive, audit.ActionUserUnsuspend
	}
	if err := s.repo.SetUserStatus(ctx, id, status, in.Reason, actor.AdminID); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	e := s.entryFor(actor, action, updated)
	e.Description = fmt.Sprintf("%s user %s", verbFor(in.Action), updated.Email)
	e.PreviousValue = map[string]any{"status": target.Status}
	e.NewValue = map[string]any{"status": updated.Status, "reason": in.Reason}
	s.recorder.Record(ctx, e)
	return updated, nil
}

// ChangeRole assigns a new role to a managed account.
func (s *Service) ChangeRole(ctx context.Context, actor *gate.AdminContext, id int64, in RoleChangeInput) (*identity.User, error) {
	newRole := rbac.Role(in.Role)
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}
	if actor != nil && actor.AdminID == id {
		return nil, ErrSelfTarget
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkManageable(actor, target); err != nil {
		return nil, err
	}
	if !assignable(actor.Role, newRole) {
		return nil, ErrRoleNotAssignable
	}

	if err := s.repo.SetUserRole(ctx, id, newRole); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	e := s.entryFor(actor, audit.ActionUserRoleChange, updated)
	e.Description = fmt.Sprintf("Changed role of %s from %s to %s", updated.Email, target.Role, newRole)
	e.PreviousValue = map[string]any{"role": target.Role}
	e.NewValue = map[string]any{"role": newRole}
	s.recorder.Record(ctx, e)
	return updated, nil
}

// GetConfig returns the full system configuration.
func (s *Service) GetConfig(ctx context.Context, actor *gate.AdminContext) ([]ConfigEntry, error) {
	entries, err := s.repo.ListConfig(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ConfigEntry{}
	}
	return entries, nil
}

// UpdateConfig replaces configuration values and records one audit entry
// per changed key.
func (s *Service) UpdateConfig(ctx context.Context, actor *gate.AdminContext, in UpdateConfigInput) ([]ConfigEntry, error) {
	if len(in.Values) == 0 {
		return nil, errCode(http.StatusBadRequest, "VALIDATION_ERROR", "No configuration values provided")
	}
	for key, value := range in.Values {
		previous, err := s.repo.UpsertConfig(ctx, key, value, actorEmail(actor))
		if err != nil {
			return nil, err
		}
		e := s.entryForTarget(actor, audit.ActionConfigUpdate, audit.TargetConfig)
		e.Description = fmt.Sprintf("Updated configuration key %q", key)
		e.PreviousValue = map[string]any{key: previous}
		e.NewValue = map[string]any{key: value}
		s.recorder.Record(ctx, e)
	}
	return s.repo.ListConfig(ctx)
}

// checkManageable enforces the hierarchy rule: super admin accounts are
// untouchable by anyone below them, and a caller may only manage roles
// strictly beneath their own.
func (s *Service) checkManageable(actor *gate.AdminContext, target *identity.User) error {
	if actor == nil {
		return ErrCannotManage
	}
	if target.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return ErrProtectedUser
	}
	if !rbac.CanManageRole(actor.Role, target.Role) {
		return ErrCannotManage
	}
	return nil
}

func (s *Service) entryFor(actor *gate.AdminContext, action string, target *identity.User) audit.Entry {
	e := s.entryForTarget(actor, action, audit.TargetUser)
	e.TargetID = target.ID
	e.TargetEmail = target.Email
	return e
}

func (s *Service) entryForTarget(actor *gate.AdminContext, action, targetType string) audit.Entry {
	e := audit.Entry{
		Action:     action,
		TargetType: targetType,
		Status:     audit.StatusSuccess,
		CreatedAt:  s.now(),
	}
	if actor != nil {
		e.ActorID = actor.AdminID
		e.ActorEmail = actor.Email
		e.ActorRole = actor.Role
		e.IP = actor.IP
		e.UserAgent = actor.UserAgent
		e.RequestID = actor.RequestID
	}
	return e
}

func assignable(actorRole, newRole rbac.Role) bool {
	for _, r := range rbac.AssignableRoles(actorRole) {
		if r == newRole {
			return true
		}
	}
	return false
}

func actorEmail(actor *gate.AdminContext) string {
	if actor == nil {
		return ""
	}
	return actor.Email
}

func verbFor(action string) string {
	if action == "suspend" {
		return "Suspended"
	}
	return "Unsuspended"
}

func validStatus(s string) bool {
	switch identity.Status(s) {
	case identity.StatusActive, identity.StatusSuspended, identity.StatusDeleted:
		return true
	}
	return false
}
