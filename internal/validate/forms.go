package validate

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// ErrInvalidInput is wrapped by every FieldError.
var ErrInvalidInput = errors.New("invalid input")

const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldPasswordConfirm = "password_confirm"
	FieldCode            = "code"
)

const (
	MsgUsernameRegister    = "用户名格式不正确！\n请使用6-16位的英文、数字或下划线"
	MsgUsernameLogin       = "用户名格式不正确！"
	MsgEmail               = "请输入有效的邮箱地址"
	MsgPasswordMismatch    = "两次输入的密码不一致，请重新输入"
	MsgNewPasswordMismatch = "两次输入的新密码不一致"
	MsgPasswordLength      = "密码长度不能少于6位且不超过20位"
	MsgCodeLength          = "请输入6位验证码"
)

// FieldError reports the first failed check of a form.
type FieldError struct {
	Field   string
	Message string
	// ClearPasswords asks the view to empty both password inputs.
	ClearPasswords bool
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

var (
	defaultUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{6,16}$`)
	emailPattern           = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Rules holds the tunable limits. The zero value is not usable; start from DefaultRules.
type Rules struct {
	UsernamePattern *regexp.Regexp
	PasswordMinLen  int
	PasswordMaxLen  int
	CodeLength      int
}

func DefaultRules() Rules {
	return Rules{
		UsernamePattern: defaultUsernamePattern,
		PasswordMinLen:  6,
		PasswordMaxLen:  20,
		CodeLength:      6,
	}
}

// RegisterFields is the sign-up form.
type RegisterFields struct {
	Username      string
	Email         string
	Password      string
	PasswordAgain string
	Code          string
}

// LoginFields is the sign-in form.
type LoginFields struct {
	Username string
	Password string
}

// ResetFields is the password-reset form.
type ResetFields struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
	Code            string
}

// Email checks the address shape only.
func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return &FieldError{Field: FieldEmail, Message: MsgEmail}
	}
	return nil
}

func (r Rules) username(username, msg string) error {
	pattern := r.UsernamePattern
	if pattern == nil {
		pattern = defaultUsernamePattern
	}
	if !pattern.MatchString(username) {
		return &FieldError{Field: FieldUsername, Message: msg}
	}
	return nil
}

func (r Rules) password(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < r.PasswordMinLen || n > r.PasswordMaxLen {
		return &FieldError{Field: FieldPassword, Message: MsgPasswordLength}
	}
	return nil
}

func (r Rules) code(code string) error {
	if utf8.RuneCountInString(code) != r.CodeLength {
		return &FieldError{Field: FieldCode, Message: MsgCodeLength}
	}
	return nil
}

// Register checks username, password match, password length, then code.
func (r Rules) Register(f RegisterFields) error {
	if err := r.username(f.Username, MsgUsernameRegister); err != nil {
		return err
	}
	if f.Password != f.PasswordAgain {
		return &FieldError{Field: FieldPasswordConfirm, Message: MsgPasswordMismatch, ClearPasswords: true}
	}
	if err := r.password(f.Password); err != nil {
		return err
	}
	return r.code(f.Code)
}

// Login checks username then password length.
func (r Rules) Login(f LoginFields) error {
	if err := r.username(f.Username, MsgUsernameLogin); err != nil {
		return err
	}
	return r.password(f.Password)
}

// Reset checks password match, password length, then code.
func (r Rules) Reset(f ResetFields) error {
	if f.NewPassword != f.ConfirmPassword {
		return &FieldError{Field: FieldPasswordConfirm, Message: MsgNewPasswordMismatch}
	}
	if err := r.password(f.NewPassword); err != nil {
		return err
	}
	return r.code(f.Code)
}

// Message extracts the user-facing text of a validation failure.
func Message(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
