package assets

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/example/asset-vault/domain/asset"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists assets, upload tickets, and share grants.
//
// Every state-changing asset operation goes through a single conditional
// update gated on the caller-supplied expected version (and the ownership
// predicate where required). Zero rows affected surfaces as VERSION_CONFLICT
// regardless of whether the version was stale or the ownership check failed;
// the two are deliberately indistinguishable to the caller.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new asset repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateAssetWithTicket inserts the draft asset and its upload ticket as one
// transactional unit. If either insert fails both are rolled back.
func (r *Repository) CreateAssetWithTicket(a *domain.Asset, t *domain.UploadTicket) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return WrapError(CodeBadRequest, "failed to create upload ticket", err)
	}
	return nil
}

// FindAssetByID retrieves an asset by id.
func (r *Repository) FindAssetByID(id string) (*domain.Asset, error) {
	var a domain.Asset
	if err := r.db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(CodeNotFound, "asset not found")
		}
		return nil, fmt.Errorf("failed to find asset: %w", err)
	}
	return &a, nil
}

// FindTicket retrieves the upload ticket for (assetID, userID).
func (r *Repository) FindTicket(assetID, userID string) (*domain.UploadTicket, error) {
	var t domain.UploadTicket
	err := r.db.First(&t, "asset_id = ? AND user_id = ?", assetID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(CodeNotFound, "upload ticket not found")
		}
		return nil, fmt.Errorf("failed to find upload ticket: %w", err)
	}
	return &t, nil
}

// MarkTicketUsed flips the ticket's used flag. The flag is the exclusive
// gate preventing a ticket from finalizing twice.
func (r *Repository) MarkTicketUsed(assetID string) error {
	err := r.db.Model(&domain.UploadTicket{}).
		Where("asset_id = ?", assetID).
		Update("used", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark ticket used: %w", err)
	}
	return nil
}

// MarkCorrupt forces the asset into the corrupt state. The write is
// unconditional: it only runs while the asset is still draft and exclusively
// owned by the finalizing ticket, so no CAS is needed.
func (r *Repository) MarkCorrupt(assetID string) error {
	err := r.db.Model(&domain.Asset{}).
		Where("id = ?", assetID).
		Update("status", domain.StatusCorrupt).Error
	if err != nil {
		return fmt.Errorf("failed to mark asset corrupt: %w", err)
	}
	return nil
}

// UpdateVersioned applies fields to the asset through the optimistic
// concurrency guard: the update succeeds only when the stored version equals
// expectedVersion (and, when ownerID is non-empty, the caller owns the row).
// The version is bumped to expectedVersion+1 inside the same conditional
// write, so the stored sequence can never diverge from the true increment
// order. Returns the updated asset.
func (r *Repository) UpdateVersioned(assetID, ownerID string, expectedVersion int64, fields map[string]any) (*domain.Asset, error) {
	updates := map[string]any{
		"version":    expectedVersion + 1,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	q := r.db.Model(&domain.Asset{}).Where("id = ? AND version = ?", assetID, expectedVersion)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update asset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, NewError(CodeVersionConflict, "version conflict")
	}
	return r.FindAssetByID(assetID)
}

// PutShare upserts the grant and bumps the asset version in one transaction.
// The version bump is gated on ownership and expectedVersion even though the
// mutated row is logically the grant: every observer of the asset's version
// learns that its access surface changed.
func (r *Repository) PutShare(assetID, ownerID string, expectedVersion int64, grant *domain.ShareGrant) (*domain.Asset, error) {
	return r.shareTxn(assetID, ownerID, expectedVersion, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "to_user"}},
			DoUpdates: clause.AssignmentColumns([]string{"can_download"}),
		}).Create(grant).Error
	})
}

// DropShare deletes the grant row and bumps the asset version in one
// transaction. Revocation removes the row; it does not tombstone it.
// Dropping a grant that does not exist still succeeds and still bumps the
// version.
func (r *Repository) DropShare(assetID, ownerID string, expectedVersion int64, toUser string) (*domain.Asset, error) {
	return r.shareTxn(assetID, ownerID, expectedVersion, func(tx *gorm.DB) error {
		return tx.Delete(&domain.ShareGrant{}, "asset_id = ? AND to_user = ?", assetID, toUser).Error
	})
}

// shareTxn runs the grant mutation and the guarded version bump atomically.
func (r *Repository) shareTxn(assetID, ownerID string, expectedVersion int64, mutate func(tx *gorm.DB) error) (*domain.Asset, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Asset{}).
			Where("id = ? AND owner_id = ? AND version = ?", assetID, ownerID, expectedVersion).
			Updates(map[string]any{
				"version":    expectedVersion + 1,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to bump asset version: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return NewError(CodeVersionConflict, "version conflict")
		}
		return mutate(tx)
	})
	if err != nil {
		return nil, err
	}
	return r.FindAssetByID(assetID)
}

// DeleteVersioned removes the asset and everything owned by it (grants,
// ticket, audit rows) through the same guard. Returns the storage path so
// the caller can schedule removal of the stored bytes.
func (r *Repository) DeleteVersioned(assetID, ownerID string, expectedVersion int64) (string, error) {
	var storagePath string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var a domain.Asset
		if err := tx.First(&a, "id = ?", assetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewError(CodeNotFound, "asset not found")
			}
			return fmt.Errorf("failed to find asset: %w", err)
		}
		storagePath = a.StoragePath

		result := tx.Delete(&domain.Asset{}, "id = ? AND owner_id = ? AND version = ?", assetID, ownerID, expectedVersion)
		if result.Error != nil {
			return fmt.Errorf("failed to delete asset: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return NewError(CodeVersionConflict, "version conflict")
		}

		if err := tx.Delete(&domain.ShareGrant{}, "asset_id = ?", assetID).Error; err != nil {
			return fmt.Errorf("failed to delete shares: %w", err)
		}
		if err := tx.Delete(&domain.UploadTicket{}, "asset_id = ?", assetID).Error; err != nil {
			return fmt.Errorf("failed to delete ticket: %w", err)
		}
		if err := tx.Delete(&domain.DownloadAudit{}, "asset_id = ?", assetID).Error; err != nil {
			return fmt.Errorf("failed to delete audit rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return storagePath, nil
}

// ListVisible returns assets owned by or shared with userID, newest first.
// The cursor is the creation timestamp of the last item of the previous
// page; rows strictly older than it are returned. Callers request limit+1
// rows to compute hasMore without a second round trip.
func (r *Repository) ListVisible(userID string, cursor *time.Time, limit int, search string) ([]domain.Asset, error) {
	q := r.db.Model(&domain.Asset{}).
		Where("owner_id = ? OR id IN (SELECT asset_id FROM asset_shares WHERE to_user = ?)", userID, userID).
		Order("created_at DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("created_at < ?", *cursor)
	}
	if search != "" {
		q = q.Where("filename LIKE ?", "%"+search+"%")
	}

	var rows []domain.Asset
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return rows, nil
}

// FindShare retrieves the grant for (assetID, toUser); nil when absent.
func (r *Repository) FindShare(assetID, toUser string) (*domain.ShareGrant, error) {
	var g domain.ShareGrant
	err := r.db.First(&g, "asset_id = ? AND to_user = ?", assetID, toUser).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find share: %w", err)
	}
	return &g, nil
}

// RecordDownload appends a download audit row.
func (r *Repository) RecordDownload(assetID, userID string) error {
	audit := &domain.DownloadAudit{AssetID: assetID, UserID: userID}
	if err := r.db.Create(audit).Error; err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}
