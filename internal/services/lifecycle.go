package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"civicmonitor-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type StatusName string

// Status names are a versioned enum backed by the issue_statuses table.
const (
	StatusOpen                StatusName = "OPEN"
	StatusInProgress          StatusName = "IN_PROGRESS"
	StatusEscalated           StatusName = "ESCALATED"
	StatusResolvedPendingUser StatusName = "RESOLVED_PENDING_USER"
	StatusVerified            StatusName = "VERIFIED"
	StatusClosed              StatusName = "CLOSED"
)

// ESCALATED is declared and seeded but nothing transitions into it yet.
var AllStatuses = []StatusName{
	StatusOpen,
	StatusInProgress,
	StatusEscalated,
	StatusResolvedPendingUser,
	StatusVerified,
	StatusClosed,
}

// adminTargets are the only statuses an admin may set. The current status is
// not consulted.
var adminTargets = map[StatusName]bool{
	StatusInProgress:          true,
	StatusResolvedPendingUser: true,
}

// proofStatuses are the states in which an admin may attach proof media.
var proofStatuses = map[StatusName]bool{
	StatusInProgress:          true,
	StatusResolvedPendingUser: true,
}

const (
	remarksReported = "Issue reported"
	remarksVerified = "Issue verified by citizen"
	remarksClosed   = "Issue closed"

	creationSlaLevel = 1
)

var now = func() time.Time {
	return time.Now().UTC()
}

func ParseStatus(raw string) (StatusName, bool) {
	name := StatusName(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range AllStatuses {
		if status == name {
			return name, true
		}
	}
	return "", false
}

func IsAdminTarget(status StatusName) bool {
	return adminTargets[status]
}

// SlaDeadline is exact hour arithmetic on the creation instant.
func SlaDeadline(createdAt time.Time, timeLimitHours int) time.Time {
	return createdAt.Add(time.Duration(timeLimitHours) * time.Hour)
}

func statusID(ctx context.Context, q sqlx.QueryerContext, name StatusName) (string, error) {
	var id string
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM issue_statuses WHERE name = $1`, string(name))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMisconfigured(string(name) + " status not configured")
	}
	if err != nil {
		return "", WrapError(err, "load status")
	}
	return id, nil
}

// issueRecord is an issue row joined with its current status name.
type issueRecord struct {
	models.Issue
	StatusName StatusName `db:"status_name"`
}

func loadIssue(ctx context.Context, q sqlx.QueryerContext, issueID string) (issueRecord, error) {
	var record issueRecord
	err := sqlx.GetContext(ctx, q, &record, `
SELECT i.id, i.title, i.description, i.user_id, i.category_id, i.department_id, i.locality_id,
       i.status_id, i.sla_deadline, i.current_admin_id, i.created_at, i.updated_at, s.name AS status_name
FROM issues i
JOIN issue_statuses s ON s.id = i.status_id
WHERE i.id = $1
`, issueID)
	if errors.Is(err, sql.ErrNoRows) {
		return issueRecord{}, ErrNotFound("Issue not found")
	}
	if err != nil {
		return issueRecord{}, WrapError(err, "load issue")
	}
	return record, nil
}

func issueExists(ctx context.Context, q sqlx.QueryerContext, issueID string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = $1)`, issueID); err != nil {
		return WrapError(err, "check issue")
	}
	if !exists {
		return ErrNotFound("Issue does not exist")
	}
	return nil
}

func appendStatusLog(ctx context.Context, tx *sqlx.Tx, issueID, statusID, actorID string, remarks *string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO issue_status_logs (id, issue_id, status_id, changed_by_user_id, remarks, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, uuid.NewString(), issueID, statusID, actorID, remarks, at)
	return err
}

type CreateIssueInput struct {
	Title       string
	Description string
	CategoryID  string
	LocalityID  string
}

func CreateIssue(ctx context.Context, db *sqlx.DB, actor Actor, input CreateIssueInput) (models.Issue, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	categoryID := strings.TrimSpace(input.CategoryID)
	localityID := strings.TrimSpace(input.LocalityID)
	if localityID == "" {
		return models.Issue{}, ErrBadRequest("localityId is required")
	}
	if title == "" || description == "" || categoryID == "" {
		return models.Issue{}, ErrBadRequest("title, description and categoryId are required")
	}

	var category models.IssueCategory
	err := db.GetContext(ctx, &category, `SELECT id, name, department_id FROM issue_categories WHERE id = $1`, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, ErrNotFound("Invalid issue category")
	}
	if err != nil {
		return models.Issue{}, WrapError(err, "load category")
	}
	var hours int
	err = db.GetContext(ctx, &hours, `
SELECT time_limit_hours FROM sla_rules WHERE category_id = $1 AND admin_level = $2
`, category.ID, creationSlaLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, ErrMisconfigured("SLA rule not configured for this category")
	}
	if err != nil {
		return models.Issue{}, WrapError(err, "load sla rule")
	}
	var localityExists bool
	if err := db.GetContext(ctx, &localityExists, `SELECT EXISTS(SELECT 1 FROM localities WHERE id = $1)`, localityID); err != nil {
		return models.Issue{}, WrapError(err, "check locality")
	}
	if !localityExists {
		return models.Issue{}, ErrNotFound("Invalid locality")
	}
	openID, err := statusID(ctx, db, StatusOpen)
	if err != nil {
		return models.Issue{}, err
	}

	createdAt := now()
	issue := models.Issue{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		UserID:       actor.ID,
		CategoryID:   category.ID,
		DepartmentID: category.DepartmentID,
		LocalityID:   localityID,
		StatusID:     openID,
		SlaDeadline:  SlaDeadline(createdAt, hours),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Issue{}, WrapError(err, "begin create issue")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO issues (id, title, description, user_id, category_id, department_id, locality_id,
                    status_id, sla_deadline, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
`, issue.ID, issue.Title, issue.Description, issue.UserID, issue.CategoryID, issue.DepartmentID,
		issue.LocalityID, issue.StatusID, issue.SlaDeadline, issue.CreatedAt); err != nil {
		return models.Issue{}, WrapError(err, "insert issue")
	}
	remarks := remarksReported
	if err := appendStatusLog(ctx, tx, issue.ID, openID, actor.ID, &remarks, createdAt); err != nil {
		return models.Issue{}, WrapError(err, "insert status log")
	}
	if err := tx.Commit(); err != nil {
		return models.Issue{}, WrapError(err, "commit create issue")
	}
	issuesCreated.Inc()
	return issue, nil
}

type TransitionResult struct {
	IssueID      string     `json:"issueId"`
	Status       StatusName `json:"status"`
	DepartmentID string     `json:"departmentId"`
	LocalityID   string     `json:"localityId"`
	ChangedBy    string     `json:"changedBy"`
	ChangedAt    time.Time  `json:"changedAt"`
}

// AdminTransition moves an issue to IN_PROGRESS or RESOLVED_PENDING_USER on
// behalf of an admin whose scope covers the issue. The prior status is not
// checked.
func AdminTransition(ctx context.Context, db *sqlx.DB, actor Actor, issueID string, target string, remarks *string) (TransitionResult, error) {
	scope, err := LoadAdminScope(ctx, db, actor.ID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !scope.IsAdmin {
		return TransitionResult{}, ErrForbidden("Admins only")
	}
	record, err := loadIssue(ctx, db, issueID)
	if err != nil {
		return TransitionResult{}, err
	}
	if err := requireScopedAdmin(actor, scope, record.Issue); err != nil {
		return TransitionResult{}, err
	}
	status, ok := ParseStatus(target)
	if !ok || !IsAdminTarget(status) {
		return TransitionResult{}, ErrBadRequest("Invalid status transition")
	}
	newStatusID, err := statusID(ctx, db, status)
	if err != nil {
		return TransitionResult{}, err
	}

	changedAt := now()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return TransitionResult{}, WrapError(err, "begin transition")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
UPDATE issues SET status_id = $1, current_admin_id = $2, updated_at = $3 WHERE id = $4
`, newStatusID, actor.ID, changedAt, record.ID); err != nil {
		return TransitionResult{}, WrapError(err, "update issue status")
	}
	if err := appendStatusLog(ctx, tx, record.ID, newStatusID, actor.ID, nonBlank(remarks), changedAt); err != nil {
		return TransitionResult{}, WrapError(err, "insert status log")
	}
	if err := tx.Commit(); err != nil {
		return TransitionResult{}, WrapError(err, "commit transition")
	}
	issueTransitions.WithLabelValues(string(status)).Inc()
	return TransitionResult{
		IssueID:      record.ID,
		Status:       status,
		DepartmentID: record.DepartmentID,
		LocalityID:   record.LocalityID,
		ChangedBy:    actor.ID,
		ChangedAt:    changedAt,
	}, nil
}

// VerifyIssue lets the reporter confirm a resolution. The issue passes
// through VERIFIED and lands in CLOSED inside one transaction, leaving one
// log row for each.
func VerifyIssue(ctx context.Context, db *sqlx.DB, actor Actor, issueID string, feedback *string) (TransitionResult, error) {
	record, err := loadIssue(ctx, db, issueID)
	if err != nil {
		return TransitionResult{}, err
	}
	if err := requireOwner(actor, record.Issue, "Only issue creator can verify"); err != nil {
		return TransitionResult{}, err
	}
	if record.StatusName != StatusResolvedPendingUser {
		return TransitionResult{}, ErrConflict("Issue is not ready for verification")
	}
	verifiedID, err := statusID(ctx, db, StatusVerified)
	if err != nil {
		return TransitionResult{}, err
	}
	closedID, err := statusID(ctx, db, StatusClosed)
	if err != nil {
		return TransitionResult{}, err
	}

	verifiedAt := now()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return TransitionResult{}, WrapError(err, "begin verification")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO issue_verifications (id, issue_id, user_id, feedback, verified_at)
VALUES ($1,$2,$3,$4,$5)
`, uuid.NewString(), record.ID, actor.ID, nonBlank(feedback), verifiedAt); err != nil {
		if isUniqueViolation(err) {
			return TransitionResult{}, ErrConflict("Issue has already been verified")
		}
		return TransitionResult{}, WrapError(err, "insert verification")
	}
	steps := []struct {
		statusID string
		remarks  string
	}{
		{verifiedID, remarksVerified},
		{closedID, remarksClosed},
	}
	// The pending status is re-checked by the update itself so an admin
	// transition committed since loadIssue is not closed over.
	res, err := tx.ExecContext(ctx, `UPDATE issues SET status_id = $1, updated_at = $2 WHERE id = $3 AND status_id = $4`,
		verifiedID, verifiedAt, record.ID, record.StatusID)
	if err != nil {
		return TransitionResult{}, WrapError(err, "update issue status")
	}
	if n, err := res.RowsAffected(); err != nil {
		return TransitionResult{}, WrapError(err, "update issue status")
	} else if n == 0 {
		return TransitionResult{}, ErrConflict("Issue is not ready for verification")
	}
	for i, step := range steps {
		if i > 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE issues SET status_id = $1, updated_at = $2 WHERE id = $3`,
				step.statusID, verifiedAt, record.ID); err != nil {
				return TransitionResult{}, WrapError(err, "update issue status")
			}
		}
		remarks := step.remarks
		if err := appendStatusLog(ctx, tx, record.ID, step.statusID, actor.ID, &remarks, verifiedAt); err != nil {
			return TransitionResult{}, WrapError(err, "insert status log")
		}
	}
	if err := tx.Commit(); err != nil {
		return TransitionResult{}, WrapError(err, "commit verification")
	}
	issueTransitions.WithLabelValues(string(StatusVerified)).Inc()
	issueTransitions.WithLabelValues(string(StatusClosed)).Inc()
	return TransitionResult{
		IssueID:      record.ID,
		Status:       StatusClosed,
		DepartmentID: record.DepartmentID,
		LocalityID:   record.LocalityID,
		ChangedBy:    actor.ID,
		ChangedAt:    verifiedAt,
	}, nil
}

func nonBlank(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
