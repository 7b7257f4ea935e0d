package models

import "time"

type City struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	State string `db:"state"`
}

type Zone struct {
	ID     string `db:"id"`
	Name   string `db:"name"`
	CityID string `db:"city_id"`
}

type Locality struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
	ZoneID    string  `db:"zone_id"`
}

type Department struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type IssueCategory struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	DepartmentID string `db:"department_id"`
}

type SlaRule struct {
	ID             string `db:"id"`
	CategoryID     string `db:"category_id"`
	AdminLevel     int    `db:"admin_level"`
	TimeLimitHours int    `db:"time_limit_hours"`
}

type User struct {
	ID              string    `db:"id"`
	FullName        string    `db:"full_name"`
	Email           *string   `db:"email"`
	PhoneNumber     *string   `db:"phone_number"`
	PasswordHash    string    `db:"password_hash"`
	CityID          string    `db:"city_id"`
	ZoneID          string    `db:"zone_id"`
	LocalityID      string    `db:"locality_id"`
	IsVerified      bool      `db:"is_verified"`
	IsActive        bool      `db:"is_active"`
	ProfilePhotoURL *string   `db:"profile_photo_url"`
	Bio             *string   `db:"bio"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Role struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// AdminProfile presence is what makes a user an administrator.
type AdminProfile struct {
	UserID     string `db:"user_id"`
	AdminLevel int    `db:"admin_level"`
}

type IssueStatus struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type Issue struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	UserID         string    `db:"user_id"`
	CategoryID     string    `db:"category_id"`
	DepartmentID   string    `db:"department_id"`
	LocalityID     string    `db:"locality_id"`
	StatusID       string    `db:"status_id"`
	SlaDeadline    time.Time `db:"sla_deadline"`
	CurrentAdminID *string   `db:"current_admin_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type IssueStatusLog struct {
	ID              string    `db:"id"`
	IssueID         string    `db:"issue_id"`
	StatusID        string    `db:"status_id"`
	ChangedByUserID string    `db:"changed_by_user_id"`
	Remarks         *string   `db:"remarks"`
	CreatedAt       time.Time `db:"created_at"`
}

type IssueVerification struct {
	ID         string    `db:"id"`
	IssueID    string    `db:"issue_id"`
	UserID     string    `db:"user_id"`
	Feedback   *string   `db:"feedback"`
	VerifiedAt time.Time `db:"verified_at"`
}

type Comment struct {
	ID        string    `db:"id"`
	IssueID   string    `db:"issue_id"`
	UserID    string    `db:"user_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

type Media struct {
	ID             string    `db:"id"`
	UploaderUserID string    `db:"uploader_user_id"`
	MediaType      string    `db:"media_type"`
	FileURL        string    `db:"file_url"`
	ThumbnailURL   *string   `db:"thumbnail_url"`
	CreatedAt      time.Time `db:"created_at"`
}

type IssueMedia struct {
	IssueID string `db:"issue_id"`
	MediaID string `db:"media_id"`
	Purpose string `db:"purpose"`
}
