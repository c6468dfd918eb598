package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/settings"
)

var registerFieldNames sync.Once

// useWireFieldNames makes validation errors report json or form field names.
func useWireFieldNames() {
	registerFieldNames.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	})
}

// inputError is the structured rejection returned for malformed input.
type inputError struct {
	Field   string
	Message string
}

func (e inputError) Error() string {
	return e.Message
}

func writeInputError(c *gin.Context, err inputError) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Message, "field": err.Field})
}

// writeBindingError reports the first failing field of a bind call.
func writeBindingError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fieldErr := validationErrs[0]
		writeInputError(c, inputError{Field: fieldErr.Field(), Message: describeFieldError(fieldErr)})
		return
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		writeInputError(c, inputError{Field: typeErr.Field, Message: fmt.Sprintf("%s has an invalid type", typeErr.Field)})
		return
	}
	var inputErr inputError
	if errors.As(err, &inputErr) {
		writeInputError(c, inputErr)
		return
	}
	writeInputError(c, inputError{Message: "invalid request body"})
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fieldErr.Field(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s is invalid", fieldErr.Field())
	}
}

// copiesValue accepts copies as a JSON number or a numeric string.
type copiesValue struct {
	value int
	set   bool
}

func (v *copiesValue) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	return v.UnmarshalParam(raw)
}

// UnmarshalParam lets form and multipart binding decode copies.
func (v *copiesValue) UnmarshalParam(param string) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		return inputError{Field: "copies", Message: "copies must be an integer"}
	}
	v.value = parsed
	v.set = true
	return nil
}

func (v copiesValue) orDefault() int {
	if !v.set {
		return printing.MinCopies
	}
	return v.value
}

func validateCopies(copies int) error {
	if copies < printing.MinCopies || copies > printing.MaxCopies {
		return inputError{Field: "copies", Message: fmt.Sprintf("Copies must be between %d and %d", printing.MinCopies, printing.MaxCopies)}
	}
	return nil
}

type printImageInput struct {
	Copies      copiesValue `json:"copies" form:"copies"`
	PrinterName string      `json:"printer_name" form:"printer_name" binding:"max=255"`
}

type printTempInput struct {
	Copies      copiesValue `form:"copies"`
	PrinterName string      `form:"printer_name" binding:"max=255"`
}

type printerSettingsInput struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	IsActive    *bool   `json:"is_active"`
	IsDefault   *bool   `json:"is_default"`
	Description *string `json:"description"`
}

type networkInterfaceInput struct {
	Name        *string         `json:"name" binding:"omitempty,min=1,max=50"`
	IPAddress   json.RawMessage `json:"ip_address"`
	IsActive    *bool           `json:"is_active"`
	IsDefault   *bool           `json:"is_default"`
	Description *string         `json:"description"`
}

type printJobInput struct {
	PrinterName  *string `json:"printer_name" binding:"omitempty,min=1,max=255"`
	FilePath     *string `json:"file_path" binding:"omitempty,min=1,max=500"`
	Copies       *int    `json:"copies" binding:"omitempty,min=1,max=10"`
	Status       *string `json:"status" binding:"omitempty,oneof=pending printing completed failed cancelled"`
	ErrorMessage *string `json:"error_message"`
}

// sanitize strips markup from client-supplied free text.
func (h *httpHandler) sanitize(value string) string {
	return strings.TrimSpace(h.sanitizer.Sanitize(value))
}

func (h *httpHandler) sanitizePtr(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := h.sanitize(*value)
	return &cleaned
}

// identifier trims a printer or interface name and rejects whitespace,
// control characters, '/' and '#'.
func identifier(field, value string) (string, error) {
	name := strings.TrimSpace(value)
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '/' || r == '#' {
			return "", inputError{Field: field, Message: field + " contains invalid characters"}
		}
	}
	return name, nil
}

func identifierPtr(field string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	name, err := identifier(field, *value)
	if err != nil {
		return nil, err
	}
	return &name, nil
}

func requireField(present bool, field string) error {
	if !present {
		return inputError{Field: field, Message: field + " is required"}
	}
	return nil
}

func (h *httpHandler) printerPatch(input printerSettingsInput, full bool) (settings.PrinterPatch, error) {
	if full {
		if err := requireField(input.Name != nil, "name"); err != nil {
			return settings.PrinterPatch{}, err
		}
	}
	name, err := identifierPtr("name", input.Name)
	if err != nil {
		return settings.PrinterPatch{}, err
	}
	patch := settings.PrinterPatch{
		Name:        name,
		IsActive:    input.IsActive,
		IsDefault:   input.IsDefault,
		Description: h.sanitizePtr(input.Description),
	}
	if patch.Name != nil && *patch.Name == "" {
		return settings.PrinterPatch{}, inputError{Field: "name", Message: "name must not be blank"}
	}
	return patch, nil
}

func (h *httpHandler) interfacePatch(input networkInterfaceInput, full bool) (settings.InterfacePatch, error) {
	if full {
		if err := requireField(input.Name != nil, "name"); err != nil {
			return settings.InterfacePatch{}, err
		}
	}
	name, err := identifierPtr("name", input.Name)
	if err != nil {
		return settings.InterfacePatch{}, err
	}
	patch := settings.InterfacePatch{
		Name:        name,
		IsActive:    input.IsActive,
		IsDefault:   input.IsDefault,
		Description: h.sanitizePtr(input.Description),
	}
	if patch.Name != nil && *patch.Name == "" {
		return settings.InterfacePatch{}, inputError{Field: "name", Message: "name must not be blank"}
	}
	if len(input.IPAddress) > 0 {
		if string(input.IPAddress) == "null" {
			patch.ClearIP = true
		} else {
			var address string
			if err := json.Unmarshal(input.IPAddress, &address); err != nil {
				return settings.InterfacePatch{}, inputError{Field: "ip_address", Message: "ip_address must be a string"}
			}
			address = strings.TrimSpace(address)
			if address == "" {
				patch.ClearIP = true
			} else {
				patch.IPAddress = &address
			}
		}
	}
	return patch, nil
}

func (h *httpHandler) jobPatch(input printJobInput) (printing.JobPatch, error) {
	printerName, err := identifierPtr("printer_name", input.PrinterName)
	if err != nil {
		return printing.JobPatch{}, err
	}
	patch := printing.JobPatch{
		PrinterName:  printerName,
		FilePath:     input.FilePath,
		Copies:       input.Copies,
		ErrorMessage: h.sanitizePtr(input.ErrorMessage),
	}
	if input.Status != nil {
		status := printing.Status(*input.Status)
		patch.Status = &status
	}
	return patch, nil
}
