package framework

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
)

// validate holds the settings and caches for validating request payloads.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

func init() {
	// Instantiate validator.
	validate = validator.New()

	// Instantiate the english locale for the validator lib.
	enLocale := en.New()

	// Create a translator using english as the fallback locale (first arg).
	translator = ut.New(enLocale, enLocale)

	// Register english error messages for validation errors.
	lang, _ := translator.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, lang)

	// Use JSON tag names for errors instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Decode reads an HTTP request body looking for a JSON document.
// The body is decoded into the value provided.
func Decode(r *http.Request, val any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return NewRequestErrorMsg("request body is required", http.StatusBadRequest)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return NewRequestErrorWithMsg(err, "could not decode request body", http.StatusBadRequest)
	}
	return nil
}

// ValidateRequest checks the validation tags of a request struct.
func ValidateRequest(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) {
		return NewRequestErrorWithMsg(err, "could not validate request", http.StatusBadRequest)
	}

	// lang is the language used for error messages.
	lang, _ := translator.GetTranslator("en")
	fieldErrors := make([]FieldError, 0, len(vErrors))
	for _, vError := range vErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field: vError.Field(),
			Error: vError.Translate(lang),
		})
	}
	return &SafeError{
		Err:        errors.New("field validation error"),
		StatusCode: http.StatusBadRequest,
		Fields:     fieldErrors,
	}
}

// DecodeAndValidate decodes the body into val and checks its validation tags.
func DecodeAndValidate(r *http.Request, val any) error {
	if err := Decode(r, val); err != nil {
		return err
	}
	return ValidateRequest(val)
}
