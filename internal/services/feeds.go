package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type FeedPage struct {
	Limit  int
	Offset int
}

func (p FeedPage) normalized() FeedPage {
	if p.Limit <= 0 {
		p.Limit = defaultFeedLimit
	}
	if p.Limit > maxFeedLimit {
		p.Limit = maxFeedLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type PersonRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type MediaView struct {
	ID           string    `db:"id" json:"id"`
	IssueID      string    `db:"issue_id" json:"-"`
	Purpose      string    `db:"purpose" json:"purpose"`
	MediaType    string    `db:"media_type" json:"mediaType"`
	URL          string    `db:"file_url" json:"mediaUrl"`
	ThumbnailURL *string   `db:"thumbnail_url" json:"thumbnailUrl"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type IssueSummary struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Status       StatusName  `json:"status"`
	SlaDeadline  time.Time   `json:"slaDeadline"`
	SlaBreached  *bool       `json:"slaBreached,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Category     NamedRef    `json:"category"`
	Department   NamedRef    `json:"department"`
	Locality     NamedRef    `json:"locality"`
	Reporter     PersonRef   `json:"user"`
	UpvoteCount  int         `json:"upvotes"`
	CommentCount int         `json:"comments"`
	Media        []MediaView `json:"media"`
}

type TimelineEntry struct {
	ID        string     `json:"id"`
	Status    StatusName `json:"status"`
	Remarks   *string    `json:"remarks"`
	ChangedBy PersonRef  `json:"changedBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

type IssueDetail struct {
	IssueSummary
	CurrentAdminID *string         `json:"currentAdminId"`
	Timeline       []TimelineEntry `json:"timeline"`
}

type summaryRow struct {
	ID             string     `db:"id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	SlaDeadline    time.Time  `db:"sla_deadline"`
	CurrentAdminID *string    `db:"current_admin_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	StatusName     StatusName `db:"status_name"`
	CategoryID     string     `db:"category_id"`
	CategoryName   string     `db:"category_name"`
	DepartmentID   string     `db:"department_id"`
	DepartmentName string     `db:"department_name"`
	LocalityID     string     `db:"locality_id"`
	LocalityName   string     `db:"locality_name"`
	ReporterID     string     `db:"reporter_id"`
	ReporterName   string     `db:"reporter_name"`
	UpvoteCount    int        `db:"upvote_count"`
	CommentCount   int        `db:"comment_count"`
}

func (r summaryRow) summary() IssueSummary {
	return IssueSummary{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.StatusName,
		SlaDeadline:  r.SlaDeadline,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Category:     NamedRef{ID: r.CategoryID, Name: r.CategoryName},
		Department:   NamedRef{ID: r.DepartmentID, Name: r.DepartmentName},
		Locality:     NamedRef{ID: r.LocalityID, Name: r.LocalityName},
		Reporter:     PersonRef{ID: r.ReporterID, FullName: r.ReporterName},
		UpvoteCount:  r.UpvoteCount,
		CommentCount: r.CommentCount,
		Media:        []MediaView{},
	}
}

const issueSummarySelect = `
SELECT i.id, i.title, i.description, i.sla_deadline, i.current_admin_id, i.created_at, i.updated_at,
       s.name AS status_name,
       c.id AS category_id, c.name AS category_name,
       d.id AS department_id, d.name AS department_name,
       l.id AS locality_id, l.name AS locality_name,
       u.id AS reporter_id, u.full_name AS reporter_name,
       (SELECT COUNT(*) FROM issue_upvotes v WHERE v.issue_id = i.id) AS upvote_count,
       (SELECT COUNT(*) FROM comments cm WHERE cm.issue_id = i.id) AS comment_count
FROM issues i
JOIN issue_statuses s ON s.id = i.status_id
JOIN issue_categories c ON c.id = i.category_id
JOIN departments d ON d.id = i.department_id
JOIN localities l ON l.id = i.locality_id
JOIN users u ON u.id = i.user_id
`

// CitizenFeed lists issues reported in the caller's locality, newest first.
func CitizenFeed(ctx context.Context, db *sqlx.DB, actor Actor, page FeedPage) ([]IssueSummary, error) {
	page = page.normalized()
	rows := []summaryRow{}
	if err := db.SelectContext(ctx, &rows, issueSummarySelect+`
WHERE i.locality_id = $1
ORDER BY i.created_at DESC
LIMIT $2 OFFSET $3
`, actor.LocalityID, page.Limit, page.Offset); err != nil {
		return nil, WrapError(err, "citizen feed")
	}
	return summariesWithMedia(ctx, db, rows, PurposeIssueReported)
}

// ExploreFeed lists issues anywhere in the caller's city, newest first.
func ExploreFeed(ctx context.Context, db *sqlx.DB, actor Actor, page FeedPage) ([]IssueSummary, error) {
	page = page.normalized()
	rows := []summaryRow{}
	if err := db.SelectContext(ctx, &rows, issueSummarySelect+`
JOIN zones z ON z.id = l.zone_id
WHERE z.city_id = $1
ORDER BY i.created_at DESC
LIMIT $2 OFFSET $3
`, actor.CityID, page.Limit, page.Offset); err != nil {
		return nil, WrapError(err, "explore feed")
	}
	return summariesWithMedia(ctx, db, rows, PurposeIssueReported)
}

// AdminFeed lists issues inside the admin's department and locality scope,
// most urgent deadline first. slaBreached is evaluated against the current
// clock on every read.
func AdminFeed(ctx context.Context, db *sqlx.DB, actor Actor, page FeedPage) ([]IssueSummary, error) {
	scope, err := LoadAdminScope(ctx, db, actor.ID)
	if err != nil {
		return nil, err
	}
	if !scope.IsAdmin {
		return nil, ErrForbidden("Access denied. Admins only.")
	}
	if len(scope.DepartmentIDs) == 0 || len(scope.LocalityIDs) == 0 {
		return []IssueSummary{}, nil
	}
	page = page.normalized()
	query, args, err := sqlx.In(issueSummarySelect+`
WHERE i.department_id IN (?) AND i.locality_id IN (?)
ORDER BY i.sla_deadline ASC
LIMIT ? OFFSET ?
`, scope.DepartmentIDs, scope.LocalityIDs, page.Limit, page.Offset)
	if err != nil {
		return nil, WrapError(err, "admin feed")
	}
	rows := []summaryRow{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, WrapError(err, "admin feed")
	}
	summaries, err := summariesWithMedia(ctx, db, rows, "")
	if err != nil {
		return nil, err
	}
	at := now()
	for i := range summaries {
		breached := SlaBreached(summaries[i].Status, summaries[i].SlaDeadline, at)
		summaries[i].SlaBreached = &breached
	}
	return summaries, nil
}

// SlaBreached reports whether an issue still awaiting action is past its
// deadline. Verified and closed issues never count as breached.
func SlaBreached(status StatusName, deadline, at time.Time) bool {
	if status == StatusVerified || status == StatusClosed {
		return false
	}
	return at.After(deadline)
}

func GetIssue(ctx context.Context, db *sqlx.DB, issueID string) (IssueDetail, error) {
	var row summaryRow
	err := db.GetContext(ctx, &row, issueSummarySelect+`WHERE i.id = $1`, issueID)
	if errors.Is(err, sql.ErrNoRows) {
		return IssueDetail{}, ErrNotFound("Issue not found")
	}
	if err != nil {
		return IssueDetail{}, WrapError(err, "load issue")
	}
	summaries, err := summariesWithMedia(ctx, db, []summaryRow{row}, "")
	if err != nil {
		return IssueDetail{}, err
	}
	timeline, err := loadTimeline(ctx, db, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	return IssueDetail{
		IssueSummary:   summaries[0],
		CurrentAdminID: row.CurrentAdminID,
		Timeline:       timeline,
	}, nil
}

// IssueTimeline returns the append-only status log oldest first. Entries
// written in the same transaction share a timestamp and fall back to
// insertion order.
func IssueTimeline(ctx context.Context, db *sqlx.DB, issueID string) ([]TimelineEntry, error) {
	if err := issueExists(ctx, db, issueID); err != nil {
		return nil, err
	}
	return loadTimeline(ctx, db, issueID)
}

func loadTimeline(ctx context.Context, q sqlx.QueryerContext, issueID string) ([]TimelineEntry, error) {
	rows := []struct {
		ID         string     `db:"id"`
		StatusName StatusName `db:"status_name"`
		Remarks    *string    `db:"remarks"`
		CreatedAt  time.Time  `db:"created_at"`
		UserID     string     `db:"user_id"`
		FullName   string     `db:"full_name"`
	}{}
	if err := sqlx.SelectContext(ctx, q, &rows, `
SELECT l.id, s.name AS status_name, l.remarks, l.created_at, u.id AS user_id, u.full_name
FROM issue_status_logs l
JOIN issue_statuses s ON s.id = l.status_id
JOIN users u ON u.id = l.changed_by_user_id
WHERE l.issue_id = $1
ORDER BY l.created_at ASC, l.seq ASC
`, issueID); err != nil {
		return nil, WrapError(err, "load timeline")
	}
	entries := make([]TimelineEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, TimelineEntry{
			ID:        row.ID,
			Status:    row.StatusName,
			Remarks:   row.Remarks,
			ChangedBy: PersonRef{ID: row.UserID, FullName: row.FullName},
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}

// summariesWithMedia converts rows and attaches their media in one query. An
// empty purpose loads every attachment.
func summariesWithMedia(ctx context.Context, db *sqlx.DB, rows []summaryRow, purpose string) ([]IssueSummary, error) {
	summaries := make([]IssueSummary, 0, len(rows))
	if len(rows) == 0 {
		return summaries, nil
	}
	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		summaries = append(summaries, row.summary())
		ids = append(ids, row.ID)
		index[row.ID] = i
	}

	base := `
SELECT m.id, im.issue_id, im.purpose, m.media_type, m.file_url, m.thumbnail_url, m.created_at
FROM issue_media im
JOIN media m ON m.id = im.media_id
WHERE im.issue_id IN (?)`
	var (
		query string
		args  []interface{}
		err   error
	)
	if purpose == "" {
		query, args, err = sqlx.In(base+` ORDER BY m.created_at ASC`, ids)
	} else {
		query, args, err = sqlx.In(base+` AND im.purpose = ? ORDER BY m.created_at ASC`, ids, purpose)
	}
	if err != nil {
		return nil, WrapError(err, "load media")
	}
	media := []MediaView{}
	if err := db.SelectContext(ctx, &media, db.Rebind(query), args...); err != nil {
		return nil, WrapError(err, "load media")
	}
	for _, item := range media {
		if i, ok := index[item.IssueID]; ok {
			summaries[i].Media = append(summaries[i].Media, item)
		}
	}
	return summaries, nil
}
