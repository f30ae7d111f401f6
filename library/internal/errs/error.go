package errs

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
	// ErrCreationFailed matches ErrInternal with errors.Is.
	ErrCreationFailed = creationFailed{}
)

type creationFailed struct{}

func (creationFailed) Error() string { return "creation failed" }

func (creationFailed) Is(target error) bool { return target == ErrInternal }

type ErrorResponse struct {
	Message string `json:"message"`
}
