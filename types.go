package signpanel

import (
	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/stores"
)

// Channels with their own cooldown window.
const (
	ChannelRegister = "register"
	ChannelReset    = "reset"
)

// Form identifies one of the panel's three submit forms.
type Form uint8

const (
	FormRegister Form = iota
	FormLogin
	FormReset
)

func (f Form) String() string {
	switch f {
	case FormRegister:
		return "register"
	case FormLogin:
		return "login"
	case FormReset:
		return "reset"
	default:
		return "unknown"
	}
}

// View is the panel page currently shown.
type View uint8

const (
	ViewSignIn View = iota
	ViewSignUp
	ViewForgot
)

func (v View) String() string {
	switch v {
	case ViewSignIn:
		return "sign-in"
	case ViewSignUp:
		return "sign-up"
	case ViewForgot:
		return "forgot"
	default:
		return "unknown"
	}
}

// Control is a send-code control: it can be disabled and relabelled, and it
// reports whether it still exists.
type Control = cooldown.Control

// SubmitControl is a form's submit control.
type SubmitControl interface {
	SetDisabled(disabled bool)
}

// Storage is durable keyed storage for cooldown entries and the login session.
type Storage = stores.Store

// CooldownEntry is an active send window.
type CooldownEntry = cooldown.Entry

// Session is the login state kept after a successful sign-in.
type Session = backend.Session

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Username      string
	Email         string
	Password      string
	PasswordAgain string
	Code          string
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Username string
	Password string
}

// ResetRequest is the password-reset form.
type ResetRequest struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
	Code            string
}

type nopControl struct{}

func (nopControl) SetDisabled(bool) {}
func (nopControl) SetLabel(string)  {}
func (nopControl) Alive() bool      { return true }
