package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/medflow/backend/internal/domain/billing"
)

// RegisterValidators installs billing-specific binding validators on gin's
// validator engine. Must be called once before the routes are served.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	validations := map[string]validator.Func{
		"billing_category": validCategory,
		"collection_point": validCollectionPoint,
		"payment_method":   validPaymentMethod,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

func validCategory(fl validator.FieldLevel) bool {
	return billing.Category(fl.Field().String()).IsValid()
}

func validCollectionPoint(fl validator.FieldLevel) bool {
	return billing.CollectionPoint(fl.Field().String()).IsValid()
}

func validPaymentMethod(fl validator.FieldLevel) bool {
	return billing.PaymentMethod(fl.Field().String()).IsValid()
}
