package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"civicmonitor-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller every operation runs on behalf of.
// IsAdmin is derived from the admin profile only; role rows named "admin"
// are not trusted.
type Actor struct {
	ID         string
	FullName   string
	CityID     string
	ZoneID     string
	LocalityID string
	IsActive   bool
	IsAdmin    bool
	Roles      []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func LoadActor(ctx context.Context, q sqlx.QueryerContext, userID string) (Actor, error) {
	row := struct {
		ID         string `db:"id"`
		FullName   string `db:"full_name"`
		CityID     string `db:"city_id"`
		ZoneID     string `db:"zone_id"`
		LocalityID string `db:"locality_id"`
		IsActive   bool   `db:"is_active"`
		IsAdmin    bool   `db:"is_admin"`
	}{}
	err := sqlx.GetContext(ctx, q, &row, `
SELECT u.id, u.full_name, u.city_id, u.zone_id, u.locality_id, u.is_active,
       EXISTS(SELECT 1 FROM admin_profiles ap WHERE ap.user_id = u.id) AS is_admin
FROM users u
WHERE u.id = $1
`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, ErrNotFound("User not found")
	}
	if err != nil {
		return Actor{}, WrapError(err, "load actor")
	}
	stored, err := FetchRoles(ctx, q, userID)
	if err != nil {
		return Actor{}, WrapError(err, "load roles")
	}
	return Actor{
		ID:         row.ID,
		FullName:   row.FullName,
		CityID:     row.CityID,
		ZoneID:     row.ZoneID,
		LocalityID: row.LocalityID,
		IsActive:   row.IsActive,
		IsAdmin:    row.IsAdmin,
		Roles:      effectiveRoles(stored, row.IsAdmin),
	}, nil
}

func FetchRoles(ctx context.Context, q sqlx.QueryerContext, userID string) ([]string, error) {
	roles := []string{}
	err := sqlx.SelectContext(ctx, q, &roles, `
SELECT r.name
FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name
`, userID)
	return roles, err
}

func effectiveRoles(stored []string, isAdmin bool) []string {
	roles := make([]string, 0, len(stored)+1)
	seen := map[string]bool{}
	for _, role := range stored {
		name := strings.ToLower(strings.TrimSpace(role))
		if name == "" || name == RoleAdmin || seen[name] {
			continue
		}
		seen[name] = true
		roles = append(roles, name)
	}
	if isAdmin {
		roles = append(roles, RoleAdmin)
	}
	return roles
}

type SignupInput struct {
	FullName    string
	Email       *string
	PhoneNumber *string
	Password    string
	CityID      string
	ZoneID      string
	LocalityID  string
}

func Signup(ctx context.Context, db *sqlx.DB, tokens TokenService, input SignupInput) (Actor, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := normalizeEmail(input.Email)
	phone := normalizePhone(input.PhoneNumber)
	if email == nil && phone == nil {
		return Actor{}, ErrBadRequest("Email or phone number required")
	}
	if email != nil && phone != nil {
		return Actor{}, ErrBadRequest("Provide either email or phone number, not both")
	}
	if fullName == "" || strings.TrimSpace(input.Password) == "" {
		return Actor{}, ErrBadRequest("fullName and password are required")
	}

	var exists bool
	var err error
	if email != nil {
		err = db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, *email)
	} else {
		err = db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, *phone)
	}
	if err != nil {
		return Actor{}, WrapError(err, "check user")
	}
	if exists {
		return Actor{}, ErrBadRequest("User already exists")
	}
	if err := ValidateLocation(ctx, db, input.CityID, input.ZoneID, input.LocalityID); err != nil {
		return Actor{}, err
	}
	var roleID string
	if err := db.GetContext(ctx, &roleID, `SELECT id FROM roles WHERE name = $1`, RoleCitizen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Actor{}, ErrMisconfigured("citizen role not configured")
		}
		return Actor{}, WrapError(err, "load citizen role")
	}
	hash, err := tokens.HashPassword(input.Password)
	if err != nil {
		return Actor{}, WrapError(err, "hash password")
	}

	userID := uuid.NewString()
	createdAt := now()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Actor{}, WrapError(err, "begin signup")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, full_name, email, phone_number, password_hash, city_id, zone_id, locality_id,
                   is_verified, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE,TRUE,$9,$9)
`, userID, fullName, email, phone, hash, input.CityID, input.ZoneID, input.LocalityID, createdAt); err != nil {
		if isUniqueViolation(err) {
			return Actor{}, ErrBadRequest("User already exists")
		}
		return Actor{}, WrapError(err, "insert user")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
		return Actor{}, WrapError(err, "insert user role")
	}
	if err := tx.Commit(); err != nil {
		return Actor{}, WrapError(err, "commit signup")
	}
	return Actor{
		ID:         userID,
		FullName:   fullName,
		CityID:     input.CityID,
		ZoneID:     input.ZoneID,
		LocalityID: input.LocalityID,
		IsActive:   true,
		Roles:      []string{RoleCitizen},
	}, nil
}

// Authenticate resolves login credentials. Unknown users, inactive users and
// bad passwords are indistinguishable to the caller.
func Authenticate(ctx context.Context, db *sqlx.DB, tokens TokenService, email, phone *string, password string) (Actor, error) {
	email = normalizeEmail(email)
	phone = normalizePhone(phone)
	if (email == nil && phone == nil) || password == "" {
		return Actor{}, ErrUnauthorized("Invalid credentials")
	}
	row := struct {
		ID           string `db:"id"`
		PasswordHash string `db:"password_hash"`
		IsActive     bool   `db:"is_active"`
	}{}
	var err error
	if email != nil {
		err = db.GetContext(ctx, &row, `SELECT id, password_hash, is_active FROM users WHERE email = $1`, *email)
	} else {
		err = db.GetContext(ctx, &row, `SELECT id, password_hash, is_active FROM users WHERE phone_number = $1`, *phone)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, ErrUnauthorized("Invalid credentials")
	}
	if err != nil {
		return Actor{}, WrapError(err, "load credentials")
	}
	if !row.IsActive || !tokens.VerifyPassword(password, row.PasswordHash) {
		return Actor{}, ErrUnauthorized("Invalid credentials")
	}
	return LoadActor(ctx, db, row.ID)
}

// ValidateLocation checks that the locality sits in the zone and the zone in
// the city.
func ValidateLocation(ctx context.Context, q sqlx.QueryerContext, cityID, zoneID, localityID string) error {
	if strings.TrimSpace(cityID) == "" || strings.TrimSpace(zoneID) == "" || strings.TrimSpace(localityID) == "" {
		return ErrBadRequest("cityId, zoneId and localityId are required")
	}
	var ok bool
	if err := sqlx.GetContext(ctx, q, &ok, `
SELECT EXISTS(
  SELECT 1
  FROM localities l
  JOIN zones z ON z.id = l.zone_id
  WHERE l.id = $1 AND z.id = $2 AND z.city_id = $3
)
`, localityID, zoneID, cityID); err != nil {
		return WrapError(err, "validate location")
	}
	if !ok {
		return ErrBadRequest("Invalid location selection")
	}
	return nil
}

type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Profile struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	Email           *string   `json:"email"`
	PhoneNumber     *string   `json:"phoneNumber"`
	ProfilePhotoURL *string   `json:"profilePhotoUrl"`
	Bio             *string   `json:"bio"`
	IsVerified      bool      `json:"isVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	City            NamedRef  `json:"city"`
	Zone            NamedRef  `json:"zone"`
	Locality        NamedRef  `json:"locality"`
	Roles           []string  `json:"roles"`
	IsAdmin         bool      `json:"isAdmin"`
}

func LoadProfile(ctx context.Context, db *sqlx.DB, userID string) (Profile, error) {
	actor, err := LoadActor(ctx, db, userID)
	if err != nil {
		return Profile{}, err
	}
	row := struct {
		models.User
		CityName     string `db:"city_name"`
		ZoneName     string `db:"zone_name"`
		LocalityName string `db:"locality_name"`
	}{}
	if err := db.GetContext(ctx, &row, `
SELECT u.id, u.full_name, u.email, u.phone_number, u.profile_photo_url, u.bio, u.is_verified, u.created_at,
       u.city_id, c.name AS city_name, u.zone_id, z.name AS zone_name, u.locality_id, l.name AS locality_name
FROM users u
JOIN cities c ON c.id = u.city_id
JOIN zones z ON z.id = u.zone_id
JOIN localities l ON l.id = u.locality_id
WHERE u.id = $1
`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound("User not found")
		}
		return Profile{}, WrapError(err, "load profile")
	}
	return Profile{
		ID:              row.ID,
		FullName:        row.FullName,
		Email:           row.Email,
		PhoneNumber:     row.PhoneNumber,
		ProfilePhotoURL: row.ProfilePhotoURL,
		Bio:             row.Bio,
		IsVerified:      row.IsVerified,
		CreatedAt:       row.CreatedAt,
		City:            NamedRef{ID: row.CityID, Name: row.CityName},
		Zone:            NamedRef{ID: row.ZoneID, Name: row.ZoneName},
		Locality:        NamedRef{ID: row.LocalityID, Name: row.LocalityName},
		Roles:           actor.Roles,
		IsAdmin:         actor.IsAdmin,
	}, nil
}

type ProfileUpdate struct {
	FullName        *string
	ProfilePhotoURL *string
	Bio             *string
	CityID          *string
	ZoneID          *string
	LocalityID      *string
}

func UpdateProfile(ctx context.Context, db *sqlx.DB, userID string, update ProfileUpdate) (Profile, error) {
	if update.CityID != nil || update.ZoneID != nil || update.LocalityID != nil {
		if err := ValidateLocation(ctx, db, deref(update.CityID), deref(update.ZoneID), deref(update.LocalityID)); err != nil {
			return Profile{}, err
		}
	}
	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return Profile{}, ErrBadRequest("fullName cannot be empty")
	}
	result, err := db.ExecContext(ctx, `
UPDATE users
SET full_name = COALESCE($2, full_name),
    profile_photo_url = COALESCE($3, profile_photo_url),
    bio = COALESCE($4, bio),
    city_id = COALESCE($5, city_id),
    zone_id = COALESCE($6, zone_id),
    locality_id = COALESCE($7, locality_id),
    updated_at = $8
WHERE id = $1
`, userID, trimmedOrNil(update.FullName), update.ProfilePhotoURL, update.Bio, update.CityID, update.ZoneID, update.LocalityID, now())
	if err != nil {
		return Profile{}, WrapError(err, "update profile")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return Profile{}, ErrNotFound("User not found")
	}
	return LoadProfile(ctx, db, userID)
}

func normalizeEmail(value *string) *string {
	if value == nil {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(*value))
	if email == "" {
		return nil
	}
	return &email
}

func normalizePhone(value *string) *string {
	if value == nil {
		return nil
	}
	phone := strings.ReplaceAll(strings.TrimSpace(*value), " ", "")
	if phone == "" {
		return nil
	}
	return &phone
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
