package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength applies to every password a caller chooses
const MinPasswordLength = 6

type RegisterMessage struct {
	Email       string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password    string `json:"password" doc:"Plain text password, at least 6 characters."`
	FirstName   string `json:"firstName" example:"Pepe"`
	LastName    string `json:"lastName" example:"Rone"`
	DateOfBirth string `json:"dob" example:"1990-05-17" doc:"Date of birth, YYYY-MM-DD or RFC 3339."`
}

func (m RegisterMessage) Type() string { return "account.register" }

func (m RegisterMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&m.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.DateOfBirth, validation.Required, validation.By(validateDate)),
	)
}

type LoginMessage struct {
	Email    string `json:"email" example:"pepe.rone@example.com"`
	Password string `json:"password"`
}

func (m LoginMessage) Type() string { return "account.login" }

func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	)
}

type ForgotPasswordMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com"`
}

func (m ForgotPasswordMessage) Type() string { return "account.password.forgot" }

func (m ForgotPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

type RefreshTokenMessage struct {
	RefreshToken string `json:"refreshToken"`
}

func (m RefreshTokenMessage) Type() string { return "account.token.refresh" }

func (m RefreshTokenMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.RefreshToken, validation.Required),
	)
}

type ChangePasswordMessage struct {
	UserID          string `json:"-"`
	CurrentPassword string `json:"currentPassword" doc:"Current password"`
	NewPassword     string `json:"newPassword" doc:"New password"`
}

func (m ChangePasswordMessage) Type() string { return "account.password.change" }

func (m ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.CurrentPassword, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&m.NewPassword, validation.Required, validation.Length(MinPasswordLength, 0)),
	)
}

// ResetPasswordMessage finalizes a reset started by ForgotPassword
type ResetPasswordMessage struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (m ResetPasswordMessage) Type() string { return "account.password.reset" }

func (m ResetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&m.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(m.Password)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func validateDate(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParseDateOfBirth(s); err != nil {
		return errors.New("must be a valid date")
	}
	return nil
}
