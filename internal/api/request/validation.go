package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var tenantIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

func init() {
	validate.RegisterValidation("tenant_id", func(fl validator.FieldLevel) bool {
		return tenantIDRegex.MatchString(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}
