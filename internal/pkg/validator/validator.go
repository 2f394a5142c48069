package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"sportclub/internal/pkg/caltime"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	register(validate)
}

// register adds the calendar tags: caldate ("2006-01-02") and clock ("15:04").
func register(v *validator.Validate) {
	_ = v.RegisterValidation("caldate", func(fl validator.FieldLevel) bool {
		_, err := caltime.ParseDate(fl.Field().String(), time.UTC)
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := caltime.ParseClock(fl.Field().String())
		return err == nil
	})
}

// RegisterBinding installs the calendar tags on gin's binding validator so
// request DTOs can use them in `binding:"..."` tags.
func RegisterBinding() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		register(v)
	}
}

// Validate struct fields
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
