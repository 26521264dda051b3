package notice

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/masomo-notices/core"
)

var (
	recipientTag  = "recipient"
	recipientText = "recipients must be user IDs or group references (group:<id>)"
)

// InitValidators registers the notice validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(recipientTag, recipientValidation)
	core.RegisterCustomTranslation(validate, translator, recipientTag, recipientText)
}

// recipientValidation checks that a recipient is a UUID, optionally prefixed with GroupRefPrefix.
func recipientValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(ParseRecipientRef(str).ID)
	return err == nil
}
