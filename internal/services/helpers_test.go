package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	previous := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = previous })
}

func q(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

var issueColumns = []string{
	"id", "title", "description", "user_id", "category_id", "department_id", "locality_id",
	"status_id", "sla_deadline", "current_admin_id", "created_at", "updated_at", "status_name",
}

func issueRows(id, ownerID, departmentID, localityID string, status StatusName) *sqlmock.Rows {
	return sqlmock.NewRows(issueColumns).AddRow(
		id, "Pothole on 5th Cross", "Deep pothole near the bus stop", ownerID, "pothole", departmentID, localityID,
		"status-"+string(status), fixedNow.Add(48*time.Hour), nil, fixedNow, fixedNow, string(status),
	)
}

func expectAdminScope(mock sqlmock.Sqlmock, userID string, departments, localities []string) {
	mock.ExpectQuery(q("SELECT admin_level FROM admin_profiles")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"admin_level"}).AddRow(1))
	deptRows := sqlmock.NewRows([]string{"department_id"})
	for _, id := range departments {
		deptRows.AddRow(id)
	}
	mock.ExpectQuery(q("SELECT department_id FROM admin_departments")).WithArgs(userID).WillReturnRows(deptRows)
	locRows := sqlmock.NewRows([]string{"locality_id"})
	for _, id := range localities {
		locRows.AddRow(id)
	}
	mock.ExpectQuery(q("SELECT locality_id FROM admin_localities")).WithArgs(userID).WillReturnRows(locRows)
}

func expectNoAdminProfile(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectQuery(q("SELECT admin_level FROM admin_profiles")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"admin_level"}))
}

func expectStatusID(mock sqlmock.Sqlmock, status StatusName) {
	mock.ExpectQuery(q("SELECT id FROM issue_statuses")).
		WithArgs(string(status)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("status-" + string(status)))
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	serr, ok := AsServiceError(err)
	require.Truef(t, ok, "expected ServiceError, got %v", err)
	require.Equal(t, kind, serr.Kind)
}
