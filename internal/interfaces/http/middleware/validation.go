package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
)

var registerValidators sync.Once

// SetupValidator teaches gin's validator the "barcode" tag and makes field errors
// carry the JSON (or query) name the client sent
func SetupValidator() {
	registerValidators.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		_ = v.RegisterValidation("barcode", func(fl validator.FieldLevel) bool {
			return catalog.ValidateBarcode(fl.Field().String()) == nil
		})
	})
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// fixed messages by tag; parameterised tags are handled in fieldMessage
var tagMessages = map[string]string{
	"required": "This field is required",
	"barcode":  "Must be printable text of at most 512 characters",
	"url":      "Invalid URL format",
	"numeric":  "Must be numeric",
}

var boundMessages = map[string]string{
	"gte":   "Must be greater than or equal to %s",
	"lte":   "Must be less than or equal to %s",
	"gt":    "Must be greater than %s",
	"lt":    "Must be less than %s",
	"oneof": "Must be one of: %s",
	"len":   "Must be exactly %s characters",
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	if format, ok := boundMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}

	var bound string
	switch fe.Tag() {
	case "min":
		bound = "at least"
	case "max":
		bound = "at most"
	default:
		return "Invalid value"
	}
	if fe.Kind() == reflect.String {
		return fmt.Sprintf("Must be %s %s characters", bound, fe.Param())
	}
	return fmt.Sprintf("Must be %s %s", bound, fe.Param())
}

// FormatValidationErrors lists every rejected field; errors that are not
// validator errors produce an envelope without details
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	errors.As(err, &fieldErrs)

	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError answers 400 with the field details of err
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}
