package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	MediaImage = "IMAGE"
	MediaVideo = "VIDEO"

	PurposeIssueReported = "ISSUE_REPORTED"
	PurposeAdminProof    = "ADMIN_PROOF"

	FolderIssues = "issues"
)

var ErrUnsupportedMedia = errors.New("only image and video uploads are supported")

// StoredMedia is what the object store hands back for an accepted upload.
type StoredMedia struct {
	URL          string
	ThumbnailURL *string
	MediaType    string
}

// MediaStore is the object-storage collaborator. Remove is best effort and
// only used to clean up after a failed database write.
type MediaStore interface {
	Upload(ctx context.Context, folder, filename string, body io.Reader) (StoredMedia, error)
	Remove(ctx context.Context, url string) error
}

type Upload struct {
	Filename string
	Body     io.Reader
}

type AttachedMedia struct {
	MediaID      string    `json:"mediaId"`
	IssueID      string    `json:"issueId"`
	Purpose      string    `json:"purpose"`
	MediaType    string    `json:"mediaType"`
	URL          string    `json:"mediaUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AttachProof stores admin proof media for an issue that is being worked on.
func AttachProof(ctx context.Context, db *sqlx.DB, store MediaStore, actor Actor, issueID string, upload Upload) (AttachedMedia, error) {
	scope, err := LoadAdminScope(ctx, db, actor.ID)
	if err != nil {
		return AttachedMedia{}, err
	}
	if !scope.IsAdmin {
		return AttachedMedia{}, ErrForbidden("Admins only")
	}
	record, err := loadIssue(ctx, db, issueID)
	if err != nil {
		return AttachedMedia{}, err
	}
	if err := requireScopedAdmin(actor, scope, record.Issue); err != nil {
		return AttachedMedia{}, err
	}
	if !proofStatuses[record.StatusName] {
		return AttachedMedia{}, ErrConflict("Proof can only be attached while the issue is in progress or pending verification")
	}
	return attachMedia(ctx, db, store, actor, record.ID, PurposeAdminProof, upload)
}

// AttachReportMedia lets the reporter add photos or video of the problem.
func AttachReportMedia(ctx context.Context, db *sqlx.DB, store MediaStore, actor Actor, issueID string, upload Upload) (AttachedMedia, error) {
	record, err := loadIssue(ctx, db, issueID)
	if err != nil {
		return AttachedMedia{}, err
	}
	if err := requireOwner(actor, record.Issue, "Only the issue reporter can attach media"); err != nil {
		return AttachedMedia{}, err
	}
	return attachMedia(ctx, db, store, actor, record.ID, PurposeIssueReported, upload)
}

func attachMedia(ctx context.Context, db *sqlx.DB, store MediaStore, actor Actor, issueID, purpose string, upload Upload) (AttachedMedia, error) {
	if upload.Body == nil {
		return AttachedMedia{}, ErrBadRequest("No file uploaded")
	}
	stored, err := store.Upload(ctx, FolderIssues, upload.Filename, upload.Body)
	if errors.Is(err, ErrUnsupportedMedia) {
		return AttachedMedia{}, ErrBadRequest("Only image and video uploads are supported")
	}
	if _, ok := AsServiceError(err); ok {
		return AttachedMedia{}, err
	}
	if err != nil {
		return AttachedMedia{}, ErrUploadFailed("Failed to upload media", err)
	}
	attached := AttachedMedia{
		MediaID:      uuid.NewString(),
		IssueID:      issueID,
		Purpose:      purpose,
		MediaType:    stored.MediaType,
		URL:          stored.URL,
		ThumbnailURL: stored.ThumbnailURL,
		CreatedAt:    now(),
	}
	if err := insertMedia(ctx, db, actor, attached); err != nil {
		_ = store.Remove(ctx, stored.URL)
		return AttachedMedia{}, err
	}
	return attached, nil
}

func insertMedia(ctx context.Context, db *sqlx.DB, actor Actor, media AttachedMedia) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return WrapError(err, "begin media")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO media (id, uploader_user_id, media_type, file_url, thumbnail_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, media.MediaID, actor.ID, media.MediaType, media.URL, media.ThumbnailURL, media.CreatedAt); err != nil {
		return WrapError(err, "insert media")
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO issue_media (issue_id, media_id, purpose) VALUES ($1,$2,$3)
`, media.IssueID, media.MediaID, media.Purpose); err != nil {
		return WrapError(err, "link media")
	}
	return WrapError(tx.Commit(), "commit media")
}

// DiskStore keeps uploads on the local filesystem under BasePath/<folder>/
// and serves them from URLPrefix.
type DiskStore struct {
	BasePath  string
	URLPrefix string
}

func NewDiskStore(basePath string) DiskStore {
	return DiskStore{BasePath: basePath, URLPrefix: "/media"}
}

func (d DiskStore) Upload(ctx context.Context, folder, filename string, body io.Reader) (StoredMedia, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return StoredMedia{}, err
	}
	if n == 0 {
		return StoredMedia{}, ErrBadRequest("File is empty")
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	mediaType := classifyMedia(detected.String())
	if mediaType == "" {
		return StoredMedia{}, ErrUnsupportedMedia
	}

	dir := filepath.Join(d.BasePath, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredMedia{}, err
	}
	key := uuid.NewString() + detected.Extension()
	target := filepath.Join(dir, key)
	file, err := os.Create(target)
	if err != nil {
		return StoredMedia{}, err
	}
	_, err = io.Copy(file, io.MultiReader(bytes.NewReader(head), body))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(target)
		return StoredMedia{}, err
	}
	return StoredMedia{
		URL:       d.URLPrefix + "/" + folder + "/" + key,
		MediaType: mediaType,
	}, nil
}

func (d DiskStore) Remove(ctx context.Context, url string) error {
	path, ok := d.PathFor(url)
	if !ok {
		return nil
	}
	return os.Remove(path)
}

// PathFor maps a URL produced by Upload back to its file, rejecting anything
// that would escape BasePath.
func (d DiskStore) PathFor(url string) (string, bool) {
	rel := strings.TrimPrefix(url, d.URLPrefix+"/")
	if rel == url {
		return "", false
	}
	parts := strings.Split(rel, "/")
	if len(parts) != 2 {
		return "", false
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || filepath.Base(part) != part {
			return "", false
		}
	}
	return filepath.Join(d.BasePath, parts[0], parts[1]), true
}

func classifyMedia(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	default:
		return ""
	}
}
