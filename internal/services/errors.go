package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindBadRequest      ErrorKind = "BAD_REQUEST"
	KindConflict        ErrorKind = "CONFLICT"
	KindMisconfigured   ErrorKind = "MISCONFIGURED"
	KindUploadFailed    ErrorKind = "UPLOAD_FAILED"
	KindUnauthorized    ErrorKind = "UNAUTHORIZED"
	KindTooManyRequests ErrorKind = "TOO_MANY_REQUESTS"
)

// ServiceError is the only error kind handlers translate into a
// client-visible status. Anything else is reported as a 500.
type ServiceError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Err
}

func ErrNotFound(msg string) error {
	return ServiceError{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Kind: KindBadRequest, Status: http.StatusBadRequest, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Kind: KindForbidden, Status: http.StatusForbidden, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Kind: KindConflict, Status: http.StatusConflict, Message: msg}
}

func ErrTooManyRequests(msg string) error {
	return ServiceError{Kind: KindTooManyRequests, Status: http.StatusTooManyRequests, Message: msg}
}

// ErrMisconfigured reports missing reference data (statuses, SLA rules,
// roles). It is logged as an operational alert on creation.
func ErrMisconfigured(msg string) error {
	logrus.WithField("alert", "misconfigured").Error(msg)
	misconfigurationAlerts.WithLabelValues(msg).Inc()
	return ServiceError{Kind: KindMisconfigured, Status: http.StatusInternalServerError, Message: msg}
}

func ErrUploadFailed(msg string, cause error) error {
	return ServiceError{Kind: KindUploadFailed, Status: http.StatusBadGateway, Message: msg, Err: cause}
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func AsServiceError(err error) (ServiceError, bool) {
	var serr ServiceError
	if errors.As(err, &serr) {
		return serr, true
	}
	return ServiceError{}, false
}

func IsKind(err error, kind ErrorKind) bool {
	serr, ok := AsServiceError(err)
	return ok && serr.Kind == kind
}
