// Package validation содержит функции валидации входных данных формы заявки.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/eorimag/internal/model"
)

// MissingFieldsError перечисляет отсутствующие или некорректные обязательные поля в порядке формы.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}

// orderForm задаёт порядок и правила проверки обязательных полей.
type orderForm struct {
	ServiceKey    string `form:"service_key" validate:"required"`
	FullName      string `form:"full_name" validate:"required"`
	Email         string `form:"email" validate:"required,email"`
	Phone         string `form:"phone" validate:"required"`
	NationalID    string `form:"cnp_cui" validate:"required"`
	SignatureData string `form:"signature_data" validate:"required"`
	IDFront       string `form:"id_front" validate:"required,document"`
	AcceptedTerms bool   `form:"accept_terms" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		return IsAllowedDocument(fl.Field().String())
	})

	return v
}

// ValidateSubmission проверяет обязательные поля заявки.
// Возвращает *MissingFieldsError со списком полей, не прошедших проверку.
func ValidateSubmission(s *model.Submission) error {
	f := orderForm{
		ServiceKey:    s.ServiceKey,
		FullName:      s.FullName,
		Email:         s.Email,
		Phone:         s.Phone,
		NationalID:    s.NationalID,
		SignatureData: s.SignatureData,
		AcceptedTerms: s.AcceptedTerms,
	}
	if s.IDFront != nil && len(s.IDFront.Data) > 0 {
		f.IDFront = s.IDFront.Filename
	}

	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	seen := make(map[string]struct{}, len(verrs))
	for _, fe := range verrs {
		if _, ok := seen[fe.Field()]; ok {
			continue
		}
		seen[fe.Field()] = struct{}{}
		fields = append(fields, fe.Field())
	}

	return &MissingFieldsError{Fields: fields}
}

// IsTruthy интерпретирует значение чекбокса формы.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes", "da":
		return true
	}
	return false
}
