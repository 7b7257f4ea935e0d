package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"civicmonitor-backend-go/internal/services"

	"github.com/go-playground/validator/v10"
)

type SignupRequest struct {
	FullName    string  `json:"fullName" validate:"required,max=120"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,min=7,max=20"`
	Password    string  `json:"password" validate:"required,min=6,max=128"`
	CityID      string  `json:"cityId" validate:"required"`
	ZoneID      string  `json:"zoneId" validate:"required"`
	LocalityID  string  `json:"localityId" validate:"required"`
}

type LoginRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    string  `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    int64             `json:"expiresAt"`
	User         *services.Profile `json:"user,omitempty"`
}

type UpdateMeRequest struct {
	FullName        *string `json:"fullName" validate:"omitempty,max=120"`
	ProfilePhotoURL *string `json:"profilePhotoUrl" validate:"omitempty,max=2048"`
	Bio             *string `json:"bio" validate:"omitempty,max=1000"`
	CityID          *string `json:"cityId"`
	ZoneID          *string `json:"zoneId"`
	LocalityID      *string `json:"localityId"`
}

type CreateIssueRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
	CategoryID  string `json:"categoryId"`
	LocalityID  string `json:"localityId"`
}

type CommentRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

type VerifyRequest struct {
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type StatusUpdateRequest struct {
	Status  string  `json:"status"`
	Remarks *string `json:"remarks" validate:"omitempty,max=2000"`
}

type ListResponse struct {
	Items interface{} `json:"items"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the body into dst and runs struct validation. Content
// rules the services enforce themselves (trimmed blanks, status names) are
// left to them so the error messages stay the same on every path.
func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.ErrBadRequest("Invalid payload")
	}
	if err := s.Validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return services.ErrBadRequest(validationMessage(fieldErrs[0]))
		}
		return services.ErrBadRequest("Invalid payload")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
