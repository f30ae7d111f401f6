package validate

import (
	"github.com/go-playground/validator/v10"
)

// Validator is implemented by payloads with rules struct tags cannot express.
type Validator interface {
	Validate() error
}

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	if v, ok := i.(Validator); ok {
		return v.Validate()
	}
	return nil
}
