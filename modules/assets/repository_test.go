package assets

import (
	"testing"
	"time"

	domain "github.com/example/asset-vault/domain/asset"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.Asset{},
		&domain.UploadTicket{},
		&domain.ShareGrant{},
		&domain.DownloadAudit{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// seedAsset inserts a draft asset with its ticket and returns the asset.
func seedAsset(t *testing.T, repo *Repository, ownerID string) *domain.Asset {
	t.Helper()

	assetID := uuid.New().String()
	a := &domain.Asset{
		ID:          assetID,
		OwnerID:     ownerID,
		Filename:    "photo.jpg",
		MIME:        "image/jpeg",
		Size:        1024,
		StoragePath: ownerID + "/2026/08/" + assetID + "-photo.jpg",
		Status:      domain.StatusDraft,
		Version:     0,
	}
	ticket := &domain.UploadTicket{
		AssetID:     assetID,
		UserID:      ownerID,
		Nonce:       "test-nonce",
		MIME:        "image/jpeg",
		Size:        1024,
		StoragePath: a.StoragePath,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	if err := repo.CreateAssetWithTicket(a, ticket); err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}
	return a
}

func TestRepository_CreateAssetWithTicket(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	a := seedAsset(t, repo, "owner-1")

	found, err := repo.FindAssetByID(a.ID)
	if err != nil {
		t.Fatalf("FindAssetByID() error = %v", err)
	}
	if found.Status != domain.StatusDraft {
		t.Errorf("expected status %q, got %q", domain.StatusDraft, found.Status)
	}
	if found.Version != 0 {
		t.Errorf("expected version 0, got %d", found.Version)
	}

	ticket, err := repo.FindTicket(a.ID, "owner-1")
	if err != nil {
		t.Fatalf("FindTicket() error = %v", err)
	}
	if ticket.Used {
		t.Error("expected fresh ticket to be unused")
	}
}

func TestRepository_CreateAssetWithTicket_Rollback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	a := seedAsset(t, repo, "owner-1")

	// Reusing the same asset ID violates the primary key; neither row of the
	// second pair may survive.
	dup := *a
	ticket := &domain.UploadTicket{
		AssetID:     uuid.New().String(),
		UserID:      "owner-1",
		Nonce:       "other-nonce",
		MIME:        "image/jpeg",
		Size:        1,
		StoragePath: "owner-1/x",
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	if err := repo.CreateAssetWithTicket(&dup, ticket); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	if _, err := repo.FindTicket(ticket.AssetID, "owner-1"); CodeOf(err) != CodeNotFound {
		t.Errorf("expected orphan ticket to be rolled back, got err = %v", err)
	}
}

func TestRepository_FindAssetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindAssetByID(uuid.New().String())
	if CodeOf(err) != CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRepository_UpdateVersioned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	t.Run("matching version succeeds and bumps by one", func(t *testing.T) {
		updated, err := repo.UpdateVersioned(a.ID, "owner-1", 0, map[string]any{
			"filename": "renamed.jpg",
		})
		if err != nil {
			t.Fatalf("UpdateVersioned() error = %v", err)
		}
		if updated.Version != 1 {
			t.Errorf("expected version 1, got %d", updated.Version)
		}
		if updated.Filename != "renamed.jpg" {
			t.Errorf("expected filename %q, got %q", "renamed.jpg", updated.Filename)
		}
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := repo.UpdateVersioned(a.ID, "owner-1", 0, map[string]any{
			"filename": "late.jpg",
		})
		if CodeOf(err) != CodeVersionConflict {
			t.Errorf("expected VERSION_CONFLICT, got %v", err)
		}
	})

	t.Run("wrong owner conflicts indistinguishably", func(t *testing.T) {
		_, err := repo.UpdateVersioned(a.ID, "intruder", 1, map[string]any{
			"filename": "stolen.jpg",
		})
		if CodeOf(err) != CodeVersionConflict {
			t.Errorf("expected VERSION_CONFLICT, got %v", err)
		}
	})

	t.Run("empty owner skips the ownership predicate", func(t *testing.T) {
		updated, err := repo.UpdateVersioned(a.ID, "", 1, map[string]any{
			"status": domain.StatusReady,
		})
		if err != nil {
			t.Fatalf("UpdateVersioned() error = %v", err)
		}
		if updated.Version != 2 {
			t.Errorf("expected version 2, got %d", updated.Version)
		}
	})
}

func TestRepository_MarkTicketUsed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	if err := repo.MarkTicketUsed(a.ID); err != nil {
		t.Fatalf("MarkTicketUsed() error = %v", err)
	}

	ticket, err := repo.FindTicket(a.ID, "owner-1")
	if err != nil {
		t.Fatalf("FindTicket() error = %v", err)
	}
	if !ticket.Used {
		t.Error("expected ticket to be marked used")
	}
}

func TestRepository_MarkCorrupt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	if err := repo.MarkCorrupt(a.ID); err != nil {
		t.Fatalf("MarkCorrupt() error = %v", err)
	}

	found, err := repo.FindAssetByID(a.ID)
	if err != nil {
		t.Fatalf("FindAssetByID() error = %v", err)
	}
	if found.Status != domain.StatusCorrupt {
		t.Errorf("expected status %q, got %q", domain.StatusCorrupt, found.Status)
	}
	if found.Version != 0 {
		t.Errorf("MarkCorrupt must not bump the version, got %d", found.Version)
	}
}

func TestRepository_PutShare(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	grant := &domain.ShareGrant{AssetID: a.ID, ToUser: "friend-1", CanDownload: false}
	updated, err := repo.PutShare(a.ID, "owner-1", 0, grant)
	if err != nil {
		t.Fatalf("PutShare() error = %v", err)
	}
	if updated.Version != 1 {
		t.Errorf("expected version 1 after grant, got %d", updated.Version)
	}

	// Upsert: regranting with download permission updates the existing row.
	regrant := &domain.ShareGrant{AssetID: a.ID, ToUser: "friend-1", CanDownload: true}
	updated, err = repo.PutShare(a.ID, "owner-1", 1, regrant)
	if err != nil {
		t.Fatalf("PutShare() upsert error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2 after regrant, got %d", updated.Version)
	}

	found, err := repo.FindShare(a.ID, "friend-1")
	if err != nil {
		t.Fatalf("FindShare() error = %v", err)
	}
	if found == nil || !found.CanDownload {
		t.Errorf("expected upserted grant with can_download = true, got %+v", found)
	}
}

func TestRepository_PutShare_NonOwnerConflicts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	grant := &domain.ShareGrant{AssetID: a.ID, ToUser: "friend-1"}
	_, err := repo.PutShare(a.ID, "intruder", 0, grant)
	if CodeOf(err) != CodeVersionConflict {
		t.Errorf("expected VERSION_CONFLICT, got %v", err)
	}

	// The grant mutation must not have leaked outside the failed transaction.
	found, err := repo.FindShare(a.ID, "friend-1")
	if err != nil {
		t.Fatalf("FindShare() error = %v", err)
	}
	if found != nil {
		t.Error("expected no grant after conflicted transaction")
	}
}

func TestRepository_DropShare(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	grant := &domain.ShareGrant{AssetID: a.ID, ToUser: "friend-1", CanDownload: true}
	if _, err := repo.PutShare(a.ID, "owner-1", 0, grant); err != nil {
		t.Fatalf("PutShare() error = %v", err)
	}

	updated, err := repo.DropShare(a.ID, "owner-1", 1, "friend-1")
	if err != nil {
		t.Fatalf("DropShare() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2 after revoke, got %d", updated.Version)
	}

	found, err := repo.FindShare(a.ID, "friend-1")
	if err != nil {
		t.Fatalf("FindShare() error = %v", err)
	}
	if found != nil {
		t.Error("expected grant row to be deleted")
	}

	// Revoking an absent grant still succeeds and still bumps the version.
	updated, err = repo.DropShare(a.ID, "owner-1", 2, "stranger")
	if err != nil {
		t.Fatalf("DropShare() absent grant error = %v", err)
	}
	if updated.Version != 3 {
		t.Errorf("expected version 3, got %d", updated.Version)
	}
}

func TestRepository_DeleteVersioned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	a := seedAsset(t, repo, "owner-1")

	grant := &domain.ShareGrant{AssetID: a.ID, ToUser: "friend-1"}
	if _, err := repo.PutShare(a.ID, "owner-1", 0, grant); err != nil {
		t.Fatalf("PutShare() error = %v", err)
	}
	if err := repo.RecordDownload(a.ID, "owner-1"); err != nil {
		t.Fatalf("RecordDownload() error = %v", err)
	}

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := repo.DeleteVersioned(a.ID, "owner-1", 0)
		if CodeOf(err) != CodeVersionConflict {
			t.Errorf("expected VERSION_CONFLICT, got %v", err)
		}
	})

	t.Run("wrong owner conflicts", func(t *testing.T) {
		_, err := repo.DeleteVersioned(a.ID, "intruder", 1)
		if CodeOf(err) != CodeVersionConflict {
			t.Errorf("expected VERSION_CONFLICT, got %v", err)
		}
	})

	t.Run("delete cascades to grants, ticket, and audit rows", func(t *testing.T) {
		storagePath, err := repo.DeleteVersioned(a.ID, "owner-1", 1)
		if err != nil {
			t.Fatalf("DeleteVersioned() error = %v", err)
		}
		if storagePath != a.StoragePath {
			t.Errorf("expected storage path %q, got %q", a.StoragePath, storagePath)
		}

		if _, err := repo.FindAssetByID(a.ID); CodeOf(err) != CodeNotFound {
			t.Errorf("expected asset gone, got %v", err)
		}
		if found, _ := repo.FindShare(a.ID, "friend-1"); found != nil {
			t.Error("expected grants gone")
		}
		if _, err := repo.FindTicket(a.ID, "owner-1"); CodeOf(err) != CodeNotFound {
			t.Errorf("expected ticket gone, got %v", err)
		}
		var audits int64
		db.Model(&domain.DownloadAudit{}).Where("asset_id = ?", a.ID).Count(&audits)
		if audits != 0 {
			t.Errorf("expected audit rows gone, got %d", audits)
		}
	})

	t.Run("missing asset is NOT_FOUND", func(t *testing.T) {
		_, err := repo.DeleteVersioned(uuid.New().String(), "owner-1", 0)
		if CodeOf(err) != CodeNotFound {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})
}

func TestRepository_ListVisible(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	// Three owned assets with strictly increasing creation times, plus one
	// foreign asset shared with the caller and one invisible foreign asset.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		a := seedAsset(t, repo, "owner-1")
		db.Model(&domain.Asset{}).Where("id = ?", a.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute))
	}
	shared := seedAsset(t, repo, "owner-2")
	db.Model(&domain.Asset{}).Where("id = ?", shared.ID).
		Update("created_at", base.Add(10*time.Minute))
	if _, err := repo.PutShare(shared.ID, "owner-2", 0, &domain.ShareGrant{
		AssetID: shared.ID, ToUser: "owner-1",
	}); err != nil {
		t.Fatalf("PutShare() error = %v", err)
	}
	seedAsset(t, repo, "owner-3")

	t.Run("includes owned and shared, newest first", func(t *testing.T) {
		rows, err := repo.ListVisible("owner-1", nil, 10, "")
		if err != nil {
			t.Fatalf("ListVisible() error = %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("expected 4 visible assets, got %d", len(rows))
		}
		if rows[0].ID != shared.ID {
			t.Errorf("expected shared asset first (newest), got %s", rows[0].ID)
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].CreatedAt.After(rows[i-1].CreatedAt) {
				t.Error("expected rows in descending created_at order")
			}
		}
	})

	t.Run("cursor returns strictly older rows", func(t *testing.T) {
		cursor := base.Add(10 * time.Minute)
		rows, err := repo.ListVisible("owner-1", &cursor, 10, "")
		if err != nil {
			t.Fatalf("ListVisible() error = %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows older than cursor, got %d", len(rows))
		}
		for _, row := range rows {
			if !row.CreatedAt.Before(cursor) {
				t.Errorf("row %s not older than cursor", row.ID)
			}
		}
	})

	t.Run("limit caps the page", func(t *testing.T) {
		rows, err := repo.ListVisible("owner-1", nil, 2, "")
		if err != nil {
			t.Fatalf("ListVisible() error = %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("expected 2 rows, got %d", len(rows))
		}
	})

	t.Run("search filters by filename substring", func(t *testing.T) {
		rows, err := repo.ListVisible("owner-1", nil, 10, "photo")
		if err != nil {
			t.Fatalf("ListVisible() error = %v", err)
		}
		if len(rows) != 4 {
			t.Errorf("expected 4 matches for %q, got %d", "photo", len(rows))
		}

		rows, err = repo.ListVisible("owner-1", nil, 10, "nomatch")
		if err != nil {
			t.Fatalf("ListVisible() error = %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected 0 matches, got %d", len(rows))
		}
	})
}
