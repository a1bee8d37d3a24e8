package blobstore

import (
	"context"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the object store connection and the URL signer.
type Module struct {
	store   *JetStreamStore
	service *Service
	natsURL string
	bucket  string
	secret  string
	baseURL string
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new blobstore module.
func NewModule(logger types.Logger) *Module {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	bucket := os.Getenv("BLOB_BUCKET")
	if bucket == "" {
		bucket = "assets"
	}
	secret := os.Getenv("BLOB_SIGNING_SECRET")
	if secret == "" {
		secret = "dev-signing-secret-change-in-production"
	}
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &Module{
		natsURL: natsURL,
		bucket:  bucket,
		secret:  secret,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "blobstore"
}

// Start connects to NATS and binds the object store bucket.
func (m *Module) Start(ctx context.Context) error {
	store, err := NewJetStreamStore(m.natsURL, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	m.store = store
	m.service = NewService(store, NewURLSigner(m.secret, m.baseURL))

	m.logger.Info("Blobstore module started", "nats_url", m.natsURL, "bucket", m.bucket)
	return nil
}

// Stop closes the NATS connection.
func (m *Module) Stop(_ context.Context) error {
	if m.store != nil {
		m.store.Close()
	}
	m.logger.Info("Blobstore module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	healthy := m.store != nil && m.store.IsConnected()
	message := "connected"
	if !healthy {
		message = "disconnected"
	}
	return mono.HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: map[string]any{
			"nats_url": m.natsURL,
			"bucket":   m.bucket,
		},
	}
}

// Service returns the blobstore service instance.
func (m *Module) Service() *Service {
	return m.service
}
