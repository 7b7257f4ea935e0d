package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	UpvoteAdded   = "added"
	UpvoteRemoved = "removed"
)

type UpvoteResult struct {
	Action  string `json:"action"`
	Upvoted bool   `json:"upvoted"`
	Count   int    `json:"upvotes"`
}

// ToggleUpvote flips the caller's membership in the issue's upvote set with a
// single statement: delete the pair if present, otherwise insert it. The
// primary key on (issue_id, user_id) keeps duplicates out even when two
// toggles race. The losing insert of two identical racing toggles hits the
// conflict and reports removed while the row stays.
func ToggleUpvote(ctx context.Context, db *sqlx.DB, userID, issueID string) (UpvoteResult, error) {
	if err := issueExists(ctx, db, issueID); err != nil {
		return UpvoteResult{}, err
	}
	var added bool
	if err := db.GetContext(ctx, &added, `
WITH removed AS (
  DELETE FROM issue_upvotes WHERE issue_id = $1 AND user_id = $2 RETURNING issue_id
), inserted AS (
  INSERT INTO issue_upvotes (issue_id, user_id, created_at)
  SELECT $1, $2, $3 WHERE NOT EXISTS (SELECT 1 FROM removed)
  ON CONFLICT (issue_id, user_id) DO NOTHING
  RETURNING issue_id
)
SELECT EXISTS(SELECT 1 FROM inserted)
`, issueID, userID, now()); err != nil {
		return UpvoteResult{}, WrapError(err, "toggle upvote")
	}
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM issue_upvotes WHERE issue_id = $1`, issueID); err != nil {
		return UpvoteResult{}, WrapError(err, "count upvotes")
	}
	result := UpvoteResult{Action: UpvoteRemoved, Upvoted: added, Count: count}
	if added {
		result.Action = UpvoteAdded
	}
	return result, nil
}

type CommentAuthor struct {
	FullName string `json:"fullName"`
}

type CommentView struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	User      CommentAuthor `json:"user"`
}

func AddComment(ctx context.Context, db *sqlx.DB, actor Actor, issueID, content string) (CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return CommentView{}, ErrBadRequest("Comment content required")
	}
	if err := issueExists(ctx, db, issueID); err != nil {
		return CommentView{}, err
	}
	comment := CommentView{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now(),
		User:      CommentAuthor{FullName: actor.FullName},
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO comments (id, issue_id, user_id, content, created_at) VALUES ($1,$2,$3,$4,$5)
`, comment.ID, issueID, actor.ID, comment.Content, comment.CreatedAt); err != nil {
		return CommentView{}, WrapError(err, "insert comment")
	}
	return comment, nil
}

// ListComments returns the issue's comments oldest first.
func ListComments(ctx context.Context, db *sqlx.DB, issueID string) ([]CommentView, error) {
	rows := []struct {
		ID        string    `db:"id"`
		Content   string    `db:"content"`
		CreatedAt time.Time `db:"created_at"`
		FullName  string    `db:"full_name"`
	}{}
	if err := db.SelectContext(ctx, &rows, `
SELECT c.id, c.content, c.created_at, u.full_name
FROM comments c
JOIN users u ON u.id = c.user_id
WHERE c.issue_id = $1
ORDER BY c.created_at ASC
`, issueID); err != nil {
		return nil, WrapError(err, "list comments")
	}
	comments := make([]CommentView, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, CommentView{
			ID:        row.ID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			User:      CommentAuthor{FullName: row.FullName},
		})
	}
	return comments, nil
}
