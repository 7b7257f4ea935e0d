package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// AdminScope is the department × locality authority of one admin.
type AdminScope struct {
	UserID        string   `json:"userId"`
	IsAdmin       bool     `json:"isAdmin"`
	Level         int      `json:"adminLevel"`
	DepartmentIDs []string `json:"departmentIds"`
	LocalityIDs   []string `json:"localityIds"`
}

func (s AdminScope) HasDepartment(departmentID string) bool {
	return contains(s.DepartmentIDs, departmentID)
}

func (s AdminScope) HasLocality(localityID string) bool {
	return contains(s.LocalityIDs, localityID)
}

// LoadAdminScope returns a zero scope with IsAdmin false for users without
// an admin profile.
func LoadAdminScope(ctx context.Context, q sqlx.QueryerContext, userID string) (AdminScope, error) {
	scope := AdminScope{UserID: userID, DepartmentIDs: []string{}, LocalityIDs: []string{}}
	err := sqlx.GetContext(ctx, q, &scope.Level, `SELECT admin_level FROM admin_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return scope, nil
	}
	if err != nil {
		return AdminScope{}, WrapError(err, "load admin profile")
	}
	scope.IsAdmin = true
	if err := sqlx.SelectContext(ctx, q, &scope.DepartmentIDs, `
SELECT department_id FROM admin_departments WHERE admin_user_id = $1 ORDER BY department_id
`, userID); err != nil {
		return AdminScope{}, WrapError(err, "load admin departments")
	}
	if err := sqlx.SelectContext(ctx, q, &scope.LocalityIDs, `
SELECT locality_id FROM admin_localities WHERE admin_user_id = $1 ORDER BY locality_id
`, userID); err != nil {
		return AdminScope{}, WrapError(err, "load admin localities")
	}
	return scope, nil
}

// ScopeView is the admin scope with display names, for the admin console.
type ScopeView struct {
	AdminLevel  int        `json:"adminLevel"`
	Departments []NamedRef `json:"departments"`
	Localities  []NamedRef `json:"localities"`
}

func LoadScopeView(ctx context.Context, db *sqlx.DB, userID string) (ScopeView, error) {
	scope, err := LoadAdminScope(ctx, db, userID)
	if err != nil {
		return ScopeView{}, err
	}
	if !scope.IsAdmin {
		return ScopeView{}, ErrForbidden("Access denied. Admins only.")
	}
	view := ScopeView{AdminLevel: scope.Level, Departments: []NamedRef{}, Localities: []NamedRef{}}
	rows := []struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}{}
	if err := db.SelectContext(ctx, &rows, `
SELECT d.id, d.name
FROM admin_departments ad
JOIN departments d ON d.id = ad.department_id
WHERE ad.admin_user_id = $1
ORDER BY d.name
`, userID); err != nil {
		return ScopeView{}, WrapError(err, "load scope departments")
	}
	for _, row := range rows {
		view.Departments = append(view.Departments, NamedRef{ID: row.ID, Name: row.Name})
	}
	rows = rows[:0]
	if err := db.SelectContext(ctx, &rows, `
SELECT l.id, l.name
FROM admin_localities al
JOIN localities l ON l.id = al.locality_id
WHERE al.admin_user_id = $1
ORDER BY l.name
`, userID); err != nil {
		return ScopeView{}, WrapError(err, "load scope localities")
	}
	for _, row := range rows {
		view.Localities = append(view.Localities, NamedRef{ID: row.ID, Name: row.Name})
	}
	return view, nil
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
