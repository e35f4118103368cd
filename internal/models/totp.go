package models

// TOTPSetupResponse returned when initiating 2FA setup
type TOTPSetupResponse struct {
	Secret      string `json:"secret"`       // Base32 secret for manual entry
	OTPAuthURL  string `json:"otpauth_url"`  // otpauth:// URL for authenticator apps
	Issuer      string `json:"issuer"`       // "KeyFlow"
	AccountName string `json:"account_name"` // user's display name
}

// TOTPEnableRequest to verify and enable 2FA
type TOTPEnableRequest struct {
	Code string `json:"code"` // 6-digit TOTP code
}

// TOTPVerifyRequest for login 2FA verification
type TOTPVerifyRequest struct {
	TempToken string `json:"temp_token"` // temporary token from step 1
	Code      string `json:"code"`       // 6-digit TOTP code
}

// TOTPDisableRequest to disable 2FA
type TOTPDisableRequest struct {
	PIN  string `json:"pin"`  // user's PIN for verification
	Code string `json:"code"` // current TOTP code
}

// LoginStep1Response when 2FA is required after PIN verification
type LoginStep1Response struct {
	Requires2FA bool   `json:"requires_2fa"`
	TempToken   string `json:"temp_token,omitempty"` // short-lived token for step 2
	Message     string `json:"message,omitempty"`
}

// User2FAStatus for user profile/settings
type User2FAStatus struct {
	Enabled bool `json:"enabled"`
}
