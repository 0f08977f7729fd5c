// Package validate checks and normalizes the visitor join form.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/tablequeue/internal/models"
)

const (
	FieldName      = "name"
	FieldPhone     = "phone"
	FieldPartySize = "party_size"
)

const (
	MinPartySize = 1
	MaxPartySize = 20
)

var (
	nonDigitRx     = regexp.MustCompile(`\D`)
	indianMobileRx = regexp.MustCompile(`^[6-9]\d{9}$`)
	lettersRx      = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// messages maps field and failed tag to the text shown next to the field.
var messages = map[string]map[string]string{
	FieldName: {
		"required":       "Name is required",
		"min":            "Name must be at least 2 characters",
		"max":            "Name cannot exceed 50 characters",
		"letters_spaces": "Only letters and spaces are allowed",
		"min_letters":    "Name must contain at least 4 letters",
	},
	FieldPhone: {
		"required":      "Phone number is required",
		"indian_mobile": "Enter a valid 10-digit Indian mobile number",
	},
	FieldPartySize: {
		"min": "Number of people must be between 1 and 20",
		"max": "Number of people must be between 1 and 20",
	},
}

// ValidationError lists per-field messages. It never reaches the network layer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid join form: " + strings.Join(parts, "; ")
}

type joinForm struct {
	Name      string `json:"name" validate:"required,min=2,max=50,letters_spaces,min_letters=4"`
	Phone     string `json:"phone" validate:"required,indian_mobile"`
	PartySize int    `json:"party_size" validate:"min=1,max=20"`
}

// Validator validates join forms. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("letters_spaces", func(fl validator.FieldLevel) bool {
		return lettersRx.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("min_letters", minLetters)
	_ = v.RegisterValidation("indian_mobile", func(fl validator.FieldLevel) bool {
		return IsValidIndianMobile(fl.Field().String())
	})

	return &Validator{v: v}
}

func minLetters(fl validator.FieldLevel) bool {
	want, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	n := 0
	for _, r := range fl.Field().String() {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			n++
		}
	}
	return n >= want
}

// JoinRequest checks req and returns it normalized: name trimmed and phone
// reduced to ten digits. On failure the error is a *ValidationError.
func (v *Validator) JoinRequest(req models.JoinRequest) (models.JoinRequest, error) {
	form := joinForm{
		Name:      strings.TrimSpace(req.Name),
		Phone:     NormalizePhone(req.Phone),
		PartySize: req.PartySize,
	}

	if err := v.v.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return models.JoinRequest{}, err
		}

		verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
		for _, fe := range fieldErrs {
			if _, seen := verr.Fields[fe.Field()]; seen {
				continue
			}
			msg, ok := messages[fe.Field()][fe.Tag()]
			if !ok {
				msg = "Invalid value"
			}
			verr.Fields[fe.Field()] = msg
		}
		return models.JoinRequest{}, verr
	}

	return models.JoinRequest{
		Name:      form.Name,
		Phone:     form.Phone,
		PartySize: form.PartySize,
	}, nil
}

// NormalizePhone strips everything but digits and drops a leading 91
// country code when more than ten digits remain.
func NormalizePhone(input string) string {
	cleaned := nonDigitRx.ReplaceAllString(input, "")
	if strings.HasPrefix(cleaned, "91") && len(cleaned) > 10 {
		cleaned = cleaned[len(cleaned)-10:]
	}
	return cleaned
}

func IsValidIndianMobile(phone string) bool {
	return indianMobileRx.MatchString(phone)
}
