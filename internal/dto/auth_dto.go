package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	StoreID  string `json:"storeId"  validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=4"`
	// TOTPCode is required once 2FA is enabled for the store.
	TOTPCode string `json:"totpCode" validate:"omitempty,len=6,numeric"`
}

type EnableTOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type SetPasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8,max=72"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LoginResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"` // seconds
	StoreID          string `json:"storeId"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

type TOTPSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}
