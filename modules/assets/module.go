package assets

import (
	"context"
	"fmt"
	"os"

	domain "github.com/example/asset-vault/domain/asset"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the asset metadata store and the core protocol service.
type Module struct {
	db        *gorm.DB
	service   *Service
	blobs     BlobStore
	directory PrincipalDirectory
	dbPath    string
	maxSize   int64
	faults    FaultConfig
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new assets module.
func NewModule(maxSize int64, faults FaultConfig, logger types.Logger) *Module {
	dbPath := os.Getenv("ASSETS_DB_PATH")
	if dbPath == "" {
		dbPath = "asset_vault.db"
	}
	return &Module{
		dbPath:  dbPath,
		maxSize: maxSize,
		faults:  faults,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "assets"
}

// SetBlobStore wires the storage collaborator. Must be called before Start.
func (m *Module) SetBlobStore(blobs BlobStore) {
	m.blobs = blobs
}

// SetPrincipalDirectory wires the identity collaborator. Must be called
// before Start.
func (m *Module) SetPrincipalDirectory(directory PrincipalDirectory) {
	m.directory = directory
}

// Start opens the database, migrates the schema, and builds the service.
func (m *Module) Start(_ context.Context) error {
	if m.blobs == nil {
		return fmt.Errorf("blob store dependency not set")
	}
	if m.directory == nil {
		return fmt.Errorf("principal directory dependency not set")
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(
		&domain.Asset{},
		&domain.UploadTicket{},
		&domain.ShareGrant{},
		&domain.DownloadAudit{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewService(NewRepository(db), m.blobs, m.directory, m.maxSize, m.faults, m.logger)

	m.logger.Info("Assets module started", "database", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Assets module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// Service returns the assets service instance.
func (m *Module) Service() *Service {
	return m.service
}
