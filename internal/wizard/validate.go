package wizard

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// notSpaceOrAt matches one rune that is neither @ nor whitespace, where
// whitespace is the browser's set: ASCII spaces, \v, Unicode separators and BOM.
const notSpaceOrAt = `[^\s\v\p{Z}\x{FEFF}@]`

var (
	emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)
	codePattern  = regexp.MustCompile(`^\d{5}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must(v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("fivedigits", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic("wizard: register validation: " + err.Error())
	}
}

type emailForm struct {
	Email string `validate:"required,emailshape"`
}

type codeForm struct {
	Code string `validate:"required,fivedigits"`
}

type passwordForm struct {
	Trimmed         string `validate:"required"`
	NewPassword     string
	ConfirmPassword string `validate:"eqfield=NewPassword"`
}

// messages maps struct field + failed tag to the text shown next to the input.
var messages = map[string]map[string]*ValidationError{
	"Email": {
		"required":   {Field: "email", Message: "Email is required"},
		"emailshape": {Field: "email", Message: "Please enter a valid email address"},
	},
	"Code": {
		"required":   {Field: "code", Message: "Please enter the verification code"},
		"fivedigits": {Field: "code", Message: "Please enter a valid 5-digit code"},
	},
	"Trimmed": {
		"required": {Field: "new_password", Message: "Password is required"},
	},
	"ConfirmPassword": {
		"eqfield": {Field: "confirm_password", Message: "Passwords do not match"},
	},
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if m, ok := messages[fe.StructField()][fe.Tag()]; ok {
		return &ValidationError{Field: m.Field, Message: m.Message}
	}
	return &ValidationError{Field: strings.ToLower(fe.StructField()), Message: fe.Error()}
}

// ValidateEmail trims and checks the local@domain.tld shape, returning the
// lower-cased address that is sent to the server.
func ValidateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if err := check(emailForm{Email: email}); err != nil {
		return "", err
	}
	return strings.ToLower(email), nil
}

// ValidateCode trims and checks for exactly five digits. The code is not
// compared with anything here; the server checks it on final submission.
func ValidateCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if err := check(codeForm{Code: code}); err != nil {
		return "", err
	}
	return code, nil
}

// ValidatePasswords requires a non-blank password equal to its confirmation.
func ValidatePasswords(newPassword, confirm string) error {
	return check(passwordForm{
		Trimmed:         strings.TrimSpace(newPassword),
		NewPassword:     newPassword,
		ConfirmPassword: confirm,
	})
}
