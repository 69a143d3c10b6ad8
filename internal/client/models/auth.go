// Package models defines the domain types exchanged between the auth gateway,
// the flow controller, and the CLI.
package models

// User is the immutable account snapshot returned by the backend on login
// and MFA verification. It is never fetched independently.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	IsMfaEnabled bool   `json:"is_mfa_enabled"`
}

// Tokens is the access/refresh token pair issued by the backend.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginCredentials is the username/password pair submitted at login.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupCredentials carries the registration form. PasswordConfirm must equal
// Password; the CLI checks that before submission.
type SignupCredentials struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// LoginResult is the backend's answer to a login attempt.
//
// When RequiresMfa is false, Tokens is set and SessionID is empty. When
// RequiresMfa is true, no tokens are issued; SessionID is the opaque
// correlator to echo back on the subsequent MFA verification.
type LoginResult struct {
	RequiresMfa bool    `json:"requires_mfa"`
	SessionID   string  `json:"session_id,omitempty"`
	User        User    `json:"user"`
	Tokens      *Tokens `json:"tokens,omitempty"`
}

// MfaVerifyResult is the backend's answer to a successful MFA verification.
type MfaVerifyResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// MfaSetupMaterial is the ephemeral enrollment payload: an opaque QR image
// (base64 PNG) and the manual entry key for authenticator apps. It is held
// only while enrollment is in progress and discarded on completion or cancel.
type MfaSetupMaterial struct {
	QRCode         string `json:"qr_code"`
	ManualEntryKey string `json:"manual_entry_key"`
	Message        string `json:"message,omitempty"`
}

// MfaSetupVerifyResult confirms enrollment. BackupCodes, when present, are
// shown to the user exactly once and never persisted.
type MfaSetupVerifyResult struct {
	IsVerified  bool     `json:"is_verified"`
	BackupCodes []string `json:"backup_codes,omitempty"`
	Message     string   `json:"message,omitempty"`
	Warning     string   `json:"warning,omitempty"`
}

// SignupResult echoes the registered identity. Registration does not
// authenticate: the account must pass email verification before login works.
type SignupResult struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message,omitempty"`
}

// EmailVerifyResult is the backend's answer to an email verification attempt.
type EmailVerifyResult struct {
	Message string `json:"message"`
}

// DeviceInfo identifies the client device on MFA verification calls.
type DeviceInfo struct {
	DeviceID  string `json:"device_id"`
	UserAgent string `json:"user_agent"`
}
