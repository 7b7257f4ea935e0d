package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus(" in_progress ")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, status)

	_, ok = ParseStatus("REOPENED")
	assert.False(t, ok)

	assert.True(t, IsAdminTarget(StatusInProgress))
	assert.True(t, IsAdminTarget(StatusResolvedPendingUser))
	assert.False(t, IsAdminTarget(StatusClosed))
	assert.False(t, IsAdminTarget(StatusVerified))
	assert.False(t, IsAdminTarget(StatusEscalated))
}

func TestSlaDeadline(t *testing.T) {
	created := time.Date(2024, 3, 30, 22, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 1, 22, 15, 0, 0, time.UTC), SlaDeadline(created, 48))
}

func TestCreateIssue(t *testing.T) {
	citizen := Actor{ID: "citizen-1", FullName: "Asha Rao", LocalityID: "whitefield"}
	input := CreateIssueInput{
		Title:       " Pothole on 5th Cross ",
		Description: "Deep pothole near the bus stop",
		CategoryID:  "pothole",
		LocalityID:  "whitefield",
	}

	t.Run("OpensWithDeadlineAndLog", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issue_categories WHERE id = $1")).
			WithArgs("pothole").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).AddRow("pothole", "Pothole", "bbmp"))
		mock.ExpectQuery(q("SELECT time_limit_hours FROM sla_rules")).
			WithArgs("pothole", creationSlaLevel).
			WillReturnRows(sqlmock.NewRows([]string{"time_limit_hours"}).AddRow(48))
		mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM localities")).
			WithArgs("whitefield").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		expectStatusID(mock, StatusOpen)
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO issues (")).
			WithArgs(sqlmock.AnyArg(), "Pothole on 5th Cross", "Deep pothole near the bus stop", "citizen-1",
				"pothole", "bbmp", "whitefield", "status-OPEN", fixedNow.Add(48*time.Hour), fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "status-OPEN", "citizen-1", "Issue reported", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		issue, err := CreateIssue(context.Background(), db, citizen, input)
		require.NoError(t, err)
		assert.Equal(t, "bbmp", issue.DepartmentID)
		assert.Equal(t, "status-OPEN", issue.StatusID)
		assert.Equal(t, fixedNow.Add(48*time.Hour), issue.SlaDeadline)
		assert.Nil(t, issue.CurrentAdminID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LogFailureRollsBack", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issue_categories WHERE id = $1")).
			WithArgs("pothole").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).AddRow("pothole", "Pothole", "bbmp"))
		mock.ExpectQuery(q("SELECT time_limit_hours FROM sla_rules")).
			WithArgs("pothole", creationSlaLevel).
			WillReturnRows(sqlmock.NewRows([]string{"time_limit_hours"}).AddRow(48))
		mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM localities")).
			WithArgs("whitefield").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		expectStatusID(mock, StatusOpen)
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO issues (")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		issue, err := CreateIssue(context.Background(), db, citizen, input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert status log")
		assert.Empty(t, issue.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingLocality", func(t *testing.T) {
		db, mock := newMockDB(t)
		in := input
		in.LocalityID = "  "
		_, err := CreateIssue(context.Background(), db, citizen, in)
		assertKind(t, err, KindBadRequest)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingTitle", func(t *testing.T) {
		db, _ := newMockDB(t)
		in := input
		in.Title = ""
		_, err := CreateIssue(context.Background(), db, citizen, in)
		assertKind(t, err, KindBadRequest)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issue_categories WHERE id = $1")).
			WithArgs("pothole").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}))

		_, err := CreateIssue(context.Background(), db, citizen, input)
		assertKind(t, err, KindNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingSlaRule", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issue_categories WHERE id = $1")).
			WithArgs("pothole").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).AddRow("pothole", "Pothole", "bbmp"))
		mock.ExpectQuery(q("SELECT time_limit_hours FROM sla_rules")).
			WithArgs("pothole", creationSlaLevel).
			WillReturnRows(sqlmock.NewRows([]string{"time_limit_hours"}))

		_, err := CreateIssue(context.Background(), db, citizen, input)
		assertKind(t, err, KindMisconfigured)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownLocality", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issue_categories WHERE id = $1")).
			WithArgs("pothole").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).AddRow("pothole", "Pothole", "bbmp"))
		mock.ExpectQuery(q("SELECT time_limit_hours FROM sla_rules")).
			WithArgs("pothole", creationSlaLevel).
			WillReturnRows(sqlmock.NewRows([]string{"time_limit_hours"}).AddRow(48))
		mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM localities")).
			WithArgs("whitefield").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := CreateIssue(context.Background(), db, citizen, input)
		assertKind(t, err, KindNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminTransition(t *testing.T) {
	admin := Actor{ID: "admin-x", IsAdmin: true}
	remarks := "  Crew dispatched  "

	t.Run("ScopedAdminMovesIssue", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusOpen))
		expectStatusID(mock, StatusInProgress)
		mock.ExpectBegin()
		mock.ExpectExec(q("UPDATE issues SET status_id")).
			WithArgs("status-IN_PROGRESS", "admin-x", fixedNow, "issue-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "status-IN_PROGRESS", "admin-x", "Crew dispatched", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := AdminTransition(context.Background(), db, admin, "issue-1", "IN_PROGRESS", &remarks)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, result.Status)
		assert.Equal(t, "admin-x", result.ChangedBy)
		assert.Equal(t, "bbmp", result.DepartmentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LogFailureRollsBack", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusOpen))
		expectStatusID(mock, StatusInProgress)
		mock.ExpectBegin()
		mock.ExpectExec(q("UPDATE issues SET status_id")).
			WithArgs("status-IN_PROGRESS", "admin-x", fixedNow, "issue-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		result, err := AdminTransition(context.Background(), db, admin, "issue-1", "IN_PROGRESS", &remarks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert status log")
		assert.Equal(t, TransitionResult{}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OutOfScopeDepartmentIsForbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-2").
			WillReturnRows(issueRows("issue-2", "citizen-1", "bescom", "whitefield", StatusOpen))

		_, err := AdminTransition(context.Background(), db, admin, "issue-2", "IN_PROGRESS", nil)
		assertKind(t, err, KindForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NonAdminIsForbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectNoAdminProfile(mock, "citizen-1")

		_, err := AdminTransition(context.Background(), db, Actor{ID: "citizen-1"}, "issue-1", "IN_PROGRESS", nil)
		assertKind(t, err, KindForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownIssue", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(issueColumns))

		_, err := AdminTransition(context.Background(), db, admin, "missing", "IN_PROGRESS", nil)
		assertKind(t, err, KindNotFound)
	})

	for _, target := range []string{"CLOSED", "VERIFIED", "OPEN", "ESCALATED", "bogus"} {
		t.Run("RejectsTarget"+target, func(t *testing.T) {
			db, mock := newMockDB(t)
			expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
			mock.ExpectQuery(q("FROM issues i")).
				WithArgs("issue-1").
				WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusInProgress))

			_, err := AdminTransition(context.Background(), db, admin, "issue-1", target, nil)
			assertKind(t, err, KindBadRequest)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("PriorStatusIsNotConsulted", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-x", []string{"bbmp"}, []string{"whitefield"})
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusClosed))
		expectStatusID(mock, StatusResolvedPendingUser)
		mock.ExpectBegin()
		mock.ExpectExec(q("UPDATE issues SET status_id")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "status-RESOLVED_PENDING_USER", "admin-x", nil, fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := AdminTransition(context.Background(), db, admin, "issue-1", "RESOLVED_PENDING_USER", nil)
		require.NoError(t, err)
		assert.Equal(t, StatusResolvedPendingUser, result.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVerifyIssue(t *testing.T) {
	reporter := Actor{ID: "citizen-1"}

	t.Run("VerifiesThenCloses", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		feedback := "Fixed properly"
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusResolvedPendingUser))
		expectStatusID(mock, StatusVerified)
		expectStatusID(mock, StatusClosed)
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO issue_verifications")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "citizen-1", "Fixed properly", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("UPDATE issues SET status_id = $1, updated_at = $2 WHERE id = $3 AND status_id = $4")).
			WithArgs("status-VERIFIED", fixedNow, "issue-1", "status-RESOLVED_PENDING_USER").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "status-VERIFIED", "citizen-1", "Issue verified by citizen", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("UPDATE issues SET status_id")).
			WithArgs("status-CLOSED", fixedNow, "issue-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "status-CLOSED", "citizen-1", "Issue closed", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := VerifyIssue(context.Background(), db, reporter, "issue-1", &feedback)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, result.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ClosedLogFailureRollsBack", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusResolvedPendingUser))
		expectStatusID(mock, StatusVerified)
		expectStatusID(mock, StatusClosed)
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO issue_verifications")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("UPDATE issues SET status_id")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("UPDATE issues SET status_id")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO issue_status_logs")).
			WithArgs(sqlmock.AnyArg(), "issue-1", "status-CLOSED", "citizen-1", "Issue closed", fixedNow).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		result, err := VerifyIssue(context.Background(), db, reporter, "issue-1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert status log")
		assert.Equal(t, TransitionResult{}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StatusChangedSinceReadIsConflict", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusResolvedPendingUser))
		expectStatusID(mock, StatusVerified)
		expectStatusID(mock, StatusClosed)
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO issue_verifications")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q("WHERE id = $3 AND status_id = $4")).
			WithArgs("status-VERIFIED", fixedNow, "issue-1", "status-RESOLVED_PENDING_USER").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := VerifyIssue(context.Background(), db, reporter, "issue-1", nil)
		assertKind(t, err, KindConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotReadyIsConflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusInProgress))

		_, err := VerifyIssue(context.Background(), db, reporter, "issue-1", nil)
		assertKind(t, err, KindConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OnlyReporterMayVerify", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusResolvedPendingUser))

		_, err := VerifyIssue(context.Background(), db, Actor{ID: "citizen-2"}, "issue-1", nil)
		assertKind(t, err, KindForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingStatusRowIsMisconfigured", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(q("FROM issues i")).
			WithArgs("issue-1").
			WillReturnRows(issueRows("issue-1", "citizen-1", "bbmp", "whitefield", StatusResolvedPendingUser))
		mock.ExpectQuery(q("SELECT id FROM issue_statuses")).
			WithArgs("VERIFIED").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := VerifyIssue(context.Background(), db, reporter, "issue-1", nil)
		assertKind(t, err, KindMisconfigured)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
