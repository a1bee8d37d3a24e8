package api

import (
	"time"

	domain "github.com/example/asset-vault/domain/asset"
)

// RegisterRequest represents a principal registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents a principal registration response.
type RegisterResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse represents a login or refresh response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TicketRequest represents an upload ticket request.
type TicketRequest struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
}

// FinalizeRequest represents a finalize request.
type FinalizeRequest struct {
	SHA256          string `json:"sha256"`
	ExpectedVersion int64  `json:"expected_version"`
}

// RenameRequest represents a rename request.
type RenameRequest struct {
	Filename        string `json:"filename"`
	ExpectedVersion int64  `json:"expected_version"`
}

// ShareRequest represents a share grant request.
type ShareRequest struct {
	Email           string `json:"email"`
	CanDownload     bool   `json:"can_download"`
	ExpectedVersion int64  `json:"expected_version"`
}

// ListResponse represents one page of assets.
type ListResponse struct {
	Assets     []domain.Asset `json:"assets"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// DeleteResponse represents an asset deletion response.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// UploadAcceptedResponse represents a raw blob upload response.
type UploadAcceptedResponse struct {
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
}

// ErrorResponse carries the structured error code callers branch on.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
