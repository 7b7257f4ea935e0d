package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaryColumns = []string{
	"id", "title", "description", "sla_deadline", "current_admin_id", "created_at", "updated_at",
	"status_name", "category_id", "category_name", "department_id", "department_name",
	"locality_id", "locality_name", "reporter_id", "reporter_name", "upvote_count", "comment_count",
}

var mediaColumns = []string{"id", "issue_id", "purpose", "media_type", "file_url", "thumbnail_url", "created_at"}

func addSummary(rows *sqlmock.Rows, id string, status StatusName, deadline time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "Streetlight out", "Dark stretch", deadline, nil, fixedNow, fixedNow,
		string(status), "streetlight", "Streetlight", "bescom", "BESCOM",
		"whitefield", "Whitefield", "citizen-1", "Asha Rao", 3, 1)
}

func TestFeedPageNormalized(t *testing.T) {
	assert.Equal(t, FeedPage{Limit: defaultFeedLimit}, FeedPage{}.normalized())
	assert.Equal(t, FeedPage{Limit: maxFeedLimit, Offset: 0}, FeedPage{Limit: 5000, Offset: -3}.normalized())
}

func TestSlaBreached(t *testing.T) {
	deadline := fixedNow
	assert.True(t, SlaBreached(StatusOpen, deadline, fixedNow.Add(time.Minute)))
	assert.True(t, SlaBreached(StatusInProgress, deadline, fixedNow.Add(time.Minute)))
	assert.False(t, SlaBreached(StatusOpen, deadline, fixedNow.Add(-time.Minute)))
	assert.False(t, SlaBreached(StatusClosed, deadline, fixedNow.Add(time.Hour)))
	assert.False(t, SlaBreached(StatusVerified, deadline, fixedNow.Add(time.Hour)))
}

func TestCitizenFeed(t *testing.T) {
	db, mock := newMockDB(t)
	citizen := Actor{ID: "citizen-1", LocalityID: "whitefield"}

	mock.ExpectQuery(q("WHERE i.locality_id = $1")).
		WithArgs("whitefield", defaultFeedLimit, 0).
		WillReturnRows(addSummary(sqlmock.NewRows(summaryColumns), "issue-1", StatusOpen, fixedNow))
	mock.ExpectQuery(q("FROM issue_media im")).
		WithArgs("issue-1", PurposeIssueReported).
		WillReturnRows(sqlmock.NewRows(mediaColumns).
			AddRow("m1", "issue-1", PurposeIssueReported, MediaImage, "/media/issues/a.png", nil, fixedNow))

	items, err := CitizenFeed(context.Background(), db, citizen, FeedPage{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "BESCOM", items[0].Department.Name)
	assert.Equal(t, 3, items[0].UpvoteCount)
	assert.Nil(t, items[0].SlaBreached)
	require.Len(t, items[0].Media, 1)
	assert.Equal(t, "/media/issues/a.png", items[0].Media[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminFeed(t *testing.T) {
	admin := Actor{ID: "admin-y", IsAdmin: true}

	t.Run("FlagsBreachedDeadlines", func(t *testing.T) {
		freezeClock(t, fixedNow)
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-y", []string{"bescom"}, []string{"whitefield"})
		rows := sqlmock.NewRows(summaryColumns)
		addSummary(rows, "overdue", StatusOpen, fixedNow.Add(-time.Hour))
		addSummary(rows, "upcoming", StatusInProgress, fixedNow.Add(time.Hour))
		mock.ExpectQuery(q("ORDER BY i.sla_deadline ASC")).
			WithArgs("bescom", "whitefield", defaultFeedLimit, 0).
			WillReturnRows(rows)
		mock.ExpectQuery(q("FROM issue_media im")).
			WithArgs("overdue", "upcoming").
			WillReturnRows(sqlmock.NewRows(mediaColumns))

		items, err := AdminFeed(context.Background(), db, admin, FeedPage{})
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.NotNil(t, items[0].SlaBreached)
		assert.True(t, *items[0].SlaBreached)
		assert.False(t, *items[1].SlaBreached)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyScopeSkipsQuery", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectAdminScope(mock, "admin-y", []string{"bescom"}, nil)

		items, err := AdminFeed(context.Background(), db, admin, FeedPage{})
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CitizenIsForbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectNoAdminProfile(mock, "citizen-1")

		_, err := AdminFeed(context.Background(), db, Actor{ID: "citizen-1"}, FeedPage{})
		assertKind(t, err, KindForbidden)
	})
}

func TestIssueTimeline(t *testing.T) {
	t.Run("OrderedEntries", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectIssueExists(mock, "issue-1", true)
		reported, verified, closed := "Issue reported", "Issue verified by citizen", "Issue closed"
		mock.ExpectQuery(q("ORDER BY l.created_at ASC, l.seq ASC")).
			WithArgs("issue-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "status_name", "remarks", "created_at", "user_id", "full_name"}).
				AddRow("l1", "OPEN", reported, fixedNow, "citizen-1", "Asha Rao").
				AddRow("l2", "VERIFIED", verified, fixedNow.Add(time.Hour), "citizen-1", "Asha Rao").
				AddRow("l3", "CLOSED", closed, fixedNow.Add(time.Hour), "citizen-1", "Asha Rao"))

		entries, err := IssueTimeline(context.Background(), db, "issue-1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, StatusOpen, entries[0].Status)
		assert.Equal(t, StatusVerified, entries[1].Status)
		assert.Equal(t, StatusClosed, entries[2].Status)
		assert.Equal(t, "Issue closed", *entries[2].Remarks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownIssue", func(t *testing.T) {
		db, mock := newMockDB(t)
		expectIssueExists(mock, "missing", false)
		_, err := IssueTimeline(context.Background(), db, "missing")
		assertKind(t, err, KindNotFound)
	})
}
