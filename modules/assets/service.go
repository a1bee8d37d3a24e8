package assets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	domain "github.com/example/asset-vault/domain/asset"
	"github.com/example/asset-vault/domain/user"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

const (
	// TicketTTL is how long an issued upload ticket stays valid.
	TicketTTL = 10 * time.Minute
	// DownloadTTL is the lifetime of a signed download link.
	DownloadTTL = 90 * time.Second

	// DefaultMaxUploadSize caps the declared size at ticket issuance.
	DefaultMaxUploadSize = 100 * 1024 * 1024

	defaultPageSize = 20
	maxPageSize     = 100
)

// Service implements the upload ticketing and integrity-verification
// protocol: ticket issuance, finalize, rename, share, revoke, delete, and
// download-link generation. All mutations run through the repository's
// optimistic-concurrency guard; the service holds no in-process locks.
type Service struct {
	repo      *Repository
	blobs     BlobStore
	directory PrincipalDirectory
	maxSize   int64
	faults    FaultConfig
	logger    types.Logger
}

// NewService creates the assets service.
func NewService(repo *Repository, blobs BlobStore, directory PrincipalDirectory, maxSize int64, faults FaultConfig, logger types.Logger) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &Service{
		repo:      repo,
		blobs:     blobs,
		directory: directory,
		maxSize:   maxSize,
		faults:    faults,
		logger:    logger,
	}
}

// newNonce returns a 32-byte random hex token. The nonce is not required for
// finalize correctness; it exists as an anti-replay token for the transport.
func newNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IssueUploadTicket creates the draft asset and its single-use ticket as one
// atomic unit and returns a time-boxed upload authorization.
func (s *Service) IssueUploadTicket(ctx context.Context, principal *user.Principal, filename, mime string, size int64) (*TicketResult, error) {
	if !MIMEAllowed(mime) {
		return nil, NewError(CodeBadRequest, "unsupported mime type")
	}
	if size <= 0 || size > s.maxSize {
		return nil, NewError(CodeBadRequest, "invalid declared size")
	}

	safeFilename := NormalizeFilename(filename)
	if safeFilename == "" {
		return nil, NewError(CodeBadRequest, "invalid filename")
	}

	assetID := uuid.New().String()
	nonce, err := newNonce()
	if err != nil {
		return nil, WrapError(CodeBadRequest, "failed to issue ticket", err)
	}

	now := time.Now()
	storagePath := fmt.Sprintf("%s/%04d/%02d/%s-%s", principal.ID, now.Year(), int(now.Month()), assetID, safeFilename)
	if err := ValidateStoragePath(storagePath); err != nil {
		return nil, err
	}

	expiresAt := now.Add(TicketTTL)
	a := &domain.Asset{
		ID:          assetID,
		OwnerID:     principal.ID,
		Filename:    safeFilename,
		MIME:        mime,
		Size:        size,
		StoragePath: storagePath,
		Status:      domain.StatusDraft,
		Version:     0,
	}
	ticket := &domain.UploadTicket{
		AssetID:     assetID,
		UserID:      principal.ID,
		Nonce:       nonce,
		MIME:        mime,
		Size:        size,
		StoragePath: storagePath,
		ExpiresAt:   expiresAt,
	}
	if err := s.repo.CreateAssetWithTicket(a, ticket); err != nil {
		return nil, err
	}

	upload, err := s.blobs.SignUpload(storagePath, TicketTTL)
	if err != nil {
		return nil, WrapError(CodeBadRequest, "failed to create upload authorization", err)
	}

	s.logger.Info("Issued upload ticket", "asset_id", assetID, "owner", principal.ID, "mime", mime)
	return &TicketResult{
		AssetID:     assetID,
		StoragePath: storagePath,
		UploadURL:   upload.URL,
		ExpiresAt:   expiresAt,
		Nonce:       nonce,
	}, nil
}

// Finalize consumes the caller's ticket, re-verifies the uploaded object
// against the ticket's declared metadata, and commits draft -> ready through
// the concurrency guard.
//
// Integrity checks run before the ticket is marked used and before the
// version bump: a crash mid-sequence leaves the ticket retry-safe and the
// asset still draft, never falsely ready.
func (s *Service) Finalize(ctx context.Context, principal *user.Principal, assetID, clientDigest string, expectedVersion int64) (*domain.Asset, error) {
	ticket, err := s.repo.FindTicket(assetID, principal.ID)
	if err != nil {
		return nil, err
	}

	if ticket.Used {
		// Idempotent success: the ticket already finalized, return the
		// asset unchanged.
		return s.repo.FindAssetByID(assetID)
	}

	if time.Now().After(ticket.ExpiresAt) {
		return nil, NewError(CodeBadRequest, "upload ticket expired")
	}

	data, err := s.blobs.Read(ctx, ticket.StoragePath)
	if err != nil {
		// Nothing contradicted the declared bytes yet, so the asset stays
		// draft and the ticket stays retryable.
		return nil, WrapError(CodeIntegrityError, "failed to verify object integrity", err)
	}

	serverDigest := Digest(data)
	if s.faults.ForceIntegrityFailure || serverDigest != clientDigest {
		return nil, s.failCorrupt(assetID, "hash mismatch")
	}
	if int64(len(data)) != ticket.Size {
		return nil, s.failCorrupt(assetID, "size mismatch")
	}
	if !MatchesSignature(data, ticket.MIME) {
		return nil, s.failCorrupt(assetID, "mime verification failed")
	}

	if err := s.repo.MarkTicketUsed(assetID); err != nil {
		return nil, err
	}

	a, err := s.repo.UpdateVersioned(assetID, "", expectedVersion, map[string]any{
		"status": domain.StatusReady,
		"sha256": serverDigest,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Asset finalized", "asset_id", assetID, "sha256", serverDigest, "version", a.Version)
	return a, nil
}

// failCorrupt transitions the asset to corrupt and returns the triggering
// integrity error. The error always propagates even if the status write
// fails; that failure is only logged.
func (s *Service) failCorrupt(assetID, reason string) error {
	if err := s.repo.MarkCorrupt(assetID); err != nil {
		s.logger.Error("Failed to mark asset corrupt", "asset_id", assetID, "error", err)
	}
	s.logger.Warn("Integrity check failed", "asset_id", assetID, "reason", reason)
	return NewError(CodeIntegrityError, reason)
}

// Rename updates the asset's filename through the concurrency guard.
func (s *Service) Rename(ctx context.Context, principal *user.Principal, assetID, newFilename string, expectedVersion int64) (*domain.Asset, error) {
	safeFilename := NormalizeFilename(newFilename)
	if safeFilename == "" {
		return nil, NewError(CodeBadRequest, "invalid filename")
	}
	return s.repo.UpdateVersioned(assetID, principal.ID, expectedVersion, map[string]any{
		"filename": safeFilename,
	})
}

// GrantShare grants granteeEmail access to the asset. The grant upsert and
// the owner-gated version bump commit atomically.
func (s *Service) GrantShare(ctx context.Context, principal *user.Principal, assetID, granteeEmail string, canDownload bool, expectedVersion int64) (*domain.Asset, error) {
	grantee, err := s.directory.FindPrincipalByEmail(ctx, granteeEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up grantee: %w", err)
	}
	if grantee == nil {
		return nil, NewError(CodeNotFound, "user not found")
	}

	grant := &domain.ShareGrant{
		AssetID:     assetID,
		ToUser:      grantee.ID,
		CanDownload: canDownload,
	}
	return s.repo.PutShare(assetID, principal.ID, expectedVersion, grant)
}

// RevokeShare removes granteeEmail's grant for the asset.
func (s *Service) RevokeShare(ctx context.Context, principal *user.Principal, assetID, granteeEmail string, expectedVersion int64) (*domain.Asset, error) {
	grantee, err := s.directory.FindPrincipalByEmail(ctx, granteeEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up grantee: %w", err)
	}
	if grantee == nil {
		return nil, NewError(CodeNotFound, "user not found")
	}

	return s.repo.DropShare(assetID, principal.ID, expectedVersion, grantee.ID)
}

// CanAccess reports whether principal may see the asset's metadata: the
// owner, or any grant holder regardless of its download flag.
func (s *Service) CanAccess(principal *user.Principal, a *domain.Asset) (bool, error) {
	if a.OwnerID == principal.ID {
		return true, nil
	}
	grant, err := s.repo.FindShare(a.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// CanDownload reports whether principal may download the asset's bytes: the
// owner, or a grant holder whose grant permits download.
func (s *Service) CanDownload(principal *user.Principal, a *domain.Asset) (bool, error) {
	if a.OwnerID == principal.ID {
		return true, nil
	}
	grant, err := s.repo.FindShare(a.ID, principal.ID)
	if err != nil {
		return false, err
	}
	return grant != nil && grant.CanDownload, nil
}

// RequestDownloadLink returns a short-lived signed URL for the asset's
// bytes. Only finalized content may be downloaded.
func (s *Service) RequestDownloadLink(ctx context.Context, principal *user.Principal, assetID string) (*domain.DownloadLink, error) {
	a, err := s.repo.FindAssetByID(assetID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.CanDownload(principal, a)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewError(CodeForbidden, "access denied")
	}
	if a.Status != domain.StatusReady {
		return nil, NewError(CodeBadRequest, "asset not ready")
	}

	signed, err := s.blobs.SignDownload(a.StoragePath, DownloadTTL)
	if err != nil {
		return nil, WrapError(CodeBadRequest, "failed to create download link", err)
	}

	if err := s.repo.RecordDownload(assetID, principal.ID); err != nil {
		s.logger.Error("Failed to record download audit", "asset_id", assetID, "error", err)
	}

	return &domain.DownloadLink{URL: signed.URL, ExpiresAt: signed.ExpiresAt}, nil
}

// Delete destroys the asset and its grants through the concurrency guard and
// schedules removal of the stored bytes.
func (s *Service) Delete(ctx context.Context, principal *user.Principal, assetID string, expectedVersion int64) (bool, error) {
	storagePath, err := s.repo.DeleteVersioned(assetID, principal.ID, expectedVersion)
	if err != nil {
		return false, err
	}

	// Rows are gone; a failed object removal is logged, not surfaced.
	if err := s.blobs.Remove(ctx, storagePath); err != nil {
		s.logger.Error("Failed to remove stored object", "path", storagePath, "error", err)
	}

	s.logger.Info("Asset deleted", "asset_id", assetID, "owner", principal.ID)
	return true, nil
}

// List returns one page of the caller's visible assets, newest first. The
// repository fetches pageSize+1 rows so hasMore needs no second round trip.
func (s *Service) List(ctx context.Context, principal *user.Principal, cursor string, pageSize int, search string) (*AssetPage, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var after *time.Time
	if cursor != "" {
		parsed, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, NewError(CodeBadRequest, "invalid cursor")
		}
		after = &parsed
	}

	rows, err := s.repo.ListVisible(principal.ID, after, pageSize+1, search)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	page := &AssetPage{Assets: rows, HasMore: hasMore}
	if len(rows) > 0 {
		page.NextCursor = rows[len(rows)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return page, nil
}
