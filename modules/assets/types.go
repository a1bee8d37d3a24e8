package assets

import (
	"context"
	"time"

	domain "github.com/example/asset-vault/domain/asset"
	"github.com/example/asset-vault/domain/user"
)

// SignedURL is a time-boxed authorization to read or write one storage path.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// BlobStore is the storage collaborator consumed by the assets service.
// Implemented by the blobstore module; faked in tests.
type BlobStore interface {
	// SignUpload returns a time-boxed URL authorizing a raw write to path.
	SignUpload(path string, ttl time.Duration) (SignedURL, error)
	// SignDownload returns a time-boxed URL authorizing a read of path.
	SignDownload(path string, ttl time.Duration) (SignedURL, error)
	// Read fetches the stored bytes at path.
	Read(ctx context.Context, path string) ([]byte, error)
	// Remove deletes the stored object at path.
	Remove(ctx context.Context, path string) error
}

// PrincipalDirectory is the identity collaborator consumed by the assets
// service. Returns (nil, nil) when no principal matches.
type PrincipalDirectory interface {
	FindPrincipalByEmail(ctx context.Context, email string) (*user.Principal, error)
}

// TicketResult is the issued upload authorization returned to the client.
type TicketResult struct {
	AssetID     string    `json:"asset_id"`
	StoragePath string    `json:"storage_path"`
	UploadURL   string    `json:"upload_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Nonce       string    `json:"nonce"`
}

// AssetPage is one page of the caller's visible assets, newest first.
type AssetPage struct {
	Assets     []domain.Asset `json:"assets"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// FaultConfig enables dev-only failure injection. The zero value disables
// everything; production wiring passes it through unset.
type FaultConfig struct {
	// ForceIntegrityFailure makes every finalize fail its digest comparison.
	ForceIntegrityFailure bool
}
