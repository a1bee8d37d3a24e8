package asset

import (
	"time"
)

// Status is the lifecycle state of an asset.
type Status string

const (
	// StatusDraft is the state between ticket issuance and finalize.
	StatusDraft Status = "draft"
	// StatusUploading is a client-reported transient state. The server never
	// sets it; upload progress lives in the ticket row, not here.
	StatusUploading Status = "uploading"
	// StatusReady means the stored bytes passed all integrity checks.
	StatusReady Status = "ready"
	// StatusCorrupt means an integrity check failed. There is no automatic
	// recovery; the owner must issue a new ticket and re-upload.
	StatusCorrupt Status = "corrupt"
)

// Asset is the metadata row for one stored binary object.
//
// Version increases by exactly 1 on every successful mutation and every
// mutation is a conditional update gated on the caller's expected version.
// SHA256 is set only on the draft -> ready transition.
type Asset struct {
	ID          string    `gorm:"primarykey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:36;not null;index" json:"owner_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	MIME        string    `gorm:"column:mime;size:64;not null" json:"mime"`
	Size        int64     `gorm:"not null" json:"size"`
	SHA256      string    `gorm:"column:sha256;size:64" json:"sha256,omitempty"`
	StoragePath string    `gorm:"size:512;not null" json:"storage_path"`
	Status      Status    `gorm:"size:16;not null;default:draft" json:"status"`
	Version     int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for the Asset model.
func (Asset) TableName() string {
	return "assets"
}

// UploadTicket is a single-use, time-boxed upload authorization bound 1:1 to
// a draft asset. Used flips false -> true exactly once; finalize is
// idempotent after that point.
type UploadTicket struct {
	AssetID     string    `gorm:"primarykey;size:36" json:"asset_id"`
	UserID      string    `gorm:"size:36;not null;index" json:"user_id"`
	Nonce       string    `gorm:"size:64;not null" json:"nonce"`
	MIME        string    `gorm:"column:mime;size:64;not null" json:"mime"`
	Size        int64     `gorm:"not null" json:"size"`
	StoragePath string    `gorm:"size:512;not null" json:"storage_path"`
	ExpiresAt   time.Time `gorm:"not null" json:"expires_at"`
	Used        bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for the UploadTicket model.
func (UploadTicket) TableName() string {
	return "upload_tickets"
}

// ShareGrant allows a non-owner principal to see, and optionally download,
// one asset. Grants live only as long as the asset; revocation deletes the
// row rather than tombstoning it.
type ShareGrant struct {
	AssetID     string    `gorm:"primarykey;size:36" json:"asset_id"`
	ToUser      string    `gorm:"primarykey;size:36" json:"to_user"`
	CanDownload bool      `gorm:"not null;default:false" json:"can_download"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for the ShareGrant model.
func (ShareGrant) TableName() string {
	return "asset_shares"
}

// DownloadAudit records each successful download-link issuance.
type DownloadAudit struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	AssetID   string    `gorm:"size:36;not null;index" json:"asset_id"`
	UserID    string    `gorm:"size:36;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the DownloadAudit model.
func (DownloadAudit) TableName() string {
	return "download_audits"
}

// DownloadLink is a short-lived signed URL. Derived on demand, never stored.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
