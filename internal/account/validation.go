package account

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/spacebook/client/internal/models"
)

// Validation messages.
const (
	MessageUsernameRequired = "username is required"
	MessageEmailRequired    = "email is required"
	MessageEmailFormat      = "email format is invalid"
	MessagePasswordRequired = "password is required"
	MessagePasswordLength   = "password must be at least 8 characters"
	MessagePasswordMix      = "password must contain a letter, a digit and one of !@#$%^&*"
	MessagePhoneRequired    = "phone number is required"
	MessagePhoneFormat      = "phone number format is invalid (e.g. 010-1234-5678)"
	MessageNothingToChange  = "nothing to change"
	MessageNewPassword      = "enter the new password"
	MessageCurrentPassword  = "enter the current password"
	MessageSamePassword     = "the new password must differ from the current one"
	MessageNewPasswordLen   = "new password must be at least 8 characters"
	MessageNewPasswordMix   = "new password must contain a letter, a digit and one of !@#$%^&*"
)

const passwordSpecials = "!@#$%^&*"

var (
	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^01[0-9]-?\d{3,4}-?\d{4}$`)
)

// ValidationError lists the rules a form violates, one message per rule.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func result(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// ValidPhone reports whether phone looks like a Korean mobile number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// passwordProblems returns the length and character-mix violations of password.
func passwordProblems(password, lengthMessage, mixMessage string) []string {
	var problems []string
	if len([]rune(password)) < 8 {
		problems = append(problems, lengthMessage)
	}

	var letter, digit, special bool
	for _, r := range password {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !letter || !digit || !special {
		problems = append(problems, mixMessage)
	}
	return problems
}

// ValidateSignup checks a signup form before it is sent.
func ValidateSignup(req models.SignupRequest) error {
	var problems []string

	if strings.TrimSpace(req.Username) == "" {
		problems = append(problems, MessageUsernameRequired)
	}

	switch email := strings.TrimSpace(req.Email); {
	case email == "":
		problems = append(problems, MessageEmailRequired)
	case !emailPattern.MatchString(email):
		problems = append(problems, MessageEmailFormat)
	}

	problems = append(problems, passwordProblems(req.Password, MessagePasswordLength, MessagePasswordMix)...)

	switch phone := strings.TrimSpace(req.PhoneNumber); {
	case phone == "":
		problems = append(problems, MessagePhoneRequired)
	case !ValidPhone(phone):
		problems = append(problems, MessagePhoneFormat)
	}

	return result(problems)
}

// ValidateLogin checks a login form before it is sent. The password must
// satisfy the same rule as at signup, so obviously wrong ones never leave.
func ValidateLogin(req models.LoginRequest) error {
	var problems []string
	if strings.TrimSpace(req.Email) == "" {
		problems = append(problems, MessageEmailRequired)
	}
	if req.Password == "" {
		problems = append(problems, MessagePasswordRequired)
	} else {
		problems = append(problems, passwordProblems(req.Password, MessagePasswordLength, MessagePasswordMix)...)
	}
	return result(problems)
}

// ProfileEdit is what the user typed on the profile page.
type ProfileEdit struct {
	PhoneNumber     string `json:"phoneNumber"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ValidateProfileEdit checks edit against the user's current profile and
// returns the request carrying only the changed fields.
func ValidateProfileEdit(current models.User, edit ProfileEdit) (*models.UpdateUserRequest, error) {
	phoneChanged := edit.PhoneNumber != "" && edit.PhoneNumber != current.PhoneNumber
	passwordFilled := edit.CurrentPassword != "" || edit.NewPassword != ""

	if !phoneChanged && !passwordFilled {
		return nil, result([]string{MessageNothingToChange})
	}

	var problems []string
	if phoneChanged && !ValidPhone(edit.PhoneNumber) {
		problems = append(problems, MessagePhoneFormat)
	}

	switch {
	case edit.CurrentPassword != "" && edit.NewPassword == "":
		problems = append(problems, MessageNewPassword)
	case edit.CurrentPassword == "" && edit.NewPassword != "":
		problems = append(problems, MessageCurrentPassword)
	case edit.NewPassword != "" && edit.NewPassword == edit.CurrentPassword:
		problems = append(problems, MessageSamePassword)
	case edit.NewPassword != "":
		problems = append(problems, passwordProblems(edit.NewPassword, MessageNewPasswordLen, MessageNewPasswordMix)...)
	}

	if err := result(problems); err != nil {
		return nil, err
	}

	req := &models.UpdateUserRequest{}
	if phoneChanged {
		req.PhoneNumber = edit.PhoneNumber
	}
	if passwordFilled {
		req.CurrentPassword = edit.CurrentPassword
		req.NewPassword = edit.NewPassword
	}
	return req, nil
}
