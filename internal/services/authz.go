package services

import "civicmonitor-backend-go/internal/models"

// The gate is pure: callers load the actor, scope and issue, and the
// functions below only compare them.

func IsOwner(actor Actor, issue models.Issue) bool {
	return actor.ID != "" && actor.ID == issue.UserID
}

// IsScopedAdmin requires both dimensions to match. A department-only or
// locality-only match is not enough.
func IsScopedAdmin(actor Actor, scope AdminScope, issue models.Issue) bool {
	if !scope.IsAdmin || scope.UserID != actor.ID {
		return false
	}
	return scope.HasDepartment(issue.DepartmentID) && scope.HasLocality(issue.LocalityID)
}

func requireScopedAdmin(actor Actor, scope AdminScope, issue models.Issue) error {
	if !scope.IsAdmin {
		return ErrForbidden("Admins only")
	}
	if !IsScopedAdmin(actor, scope, issue) {
		return ErrForbidden("Not authorized for this issue")
	}
	return nil
}

func requireOwner(actor Actor, issue models.Issue, msg string) error {
	if !IsOwner(actor, issue) {
		return ErrForbidden(msg)
	}
	return nil
}
