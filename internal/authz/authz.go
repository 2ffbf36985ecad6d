// Package authz decides what an authenticated user may see and do.
//
// Every task read builds its query from ScopeTaskQuery first; caller-supplied
// predicates are only ever added on top of that scope.
package authz

import (
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

// Authorize reports whether user's role satisfies required.
func Authorize(user *model.User, required model.Role) bool {
	if user == nil {
		return false
	}
	return user.Role.Satisfies(required)
}

// Require returns ErrNotAuthorized unless user's role satisfies required.
func Require(user *model.User, required model.Role) error {
	if !Authorize(user, required) {
		return errors.ErrNotAuthorized
	}
	return nil
}

// ScopeTaskQuery returns the visibility scope for user. Admins are
// unrestricted; managers see their own tasks plus tasks assigned to their
// direct reports; everyone else sees tasks they created or are assigned.
func ScopeTaskQuery(user *model.User) model.TaskScope {
	switch {
	case user.Role.Satisfies(model.RoleAdmin):
		return model.TaskScope{Kind: model.ScopeAll, UserID: user.ID}
	case user.Role.Satisfies(model.RoleManager):
		return model.TaskScope{Kind: model.ScopeTeam, UserID: user.ID}
	default:
		return model.TaskScope{Kind: model.ScopeOwn, UserID: user.ID}
	}
}

// ScopeAnalyticsQuery returns the scope analytics aggregate over. It matches
// ScopeTaskQuery except for managers, whose figures cover only tasks assigned
// to their direct reports.
func ScopeAnalyticsQuery(user *model.User) model.TaskScope {
	scope := ScopeTaskQuery(user)
	if scope.Kind == model.ScopeTeam {
		scope.Kind = model.ScopeReports
	}
	return scope
}
