package alert

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// InitValidators registers this package's validations.
func InitValidators(v *validator.Validate, _ ut.Translator) {
	validate = v
}

func (req SendRequest) Validate() error {
	if validate == nil {
		validate = validator.New()
	}
	return validate.Struct(req)
}
