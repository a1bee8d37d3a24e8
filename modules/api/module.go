// Package api exposes the asset vault over HTTP: auth, ticketing, finalize,
// sharing, download links, and the raw signed-URL blob endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/example/asset-vault/middleware/ratelimit"
	"github.com/example/asset-vault/modules/assets"
	"github.com/example/asset-vault/modules/blobstore"
	"github.com/example/asset-vault/modules/identity"
	"github.com/gin-gonic/gin"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// APIModule serves the REST API using the gin framework.
type APIModule struct {
	server *http.Server
	router *gin.Engine
	port   int
	logger types.Logger

	identityModule *identity.Module
	assetsModule   *assets.Module
	blobModule     *blobstore.Module
	limiter        *ratelimit.Limiter

	// Resolved from the modules above during Start.
	identitySvc *identity.Service
	assets      *assets.Service
	blobs       *blobstore.Service

	maxUploadSize int64
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new API module.
func NewModule(maxUploadSize int64, logger types.Logger) *APIModule {
	port := 3000
	if p := os.Getenv("API_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}
	if maxUploadSize <= 0 {
		maxUploadSize = assets.DefaultMaxUploadSize
	}
	return &APIModule{
		port:          port,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// SetIdentityModule wires the identity module. Must be called before Start.
func (m *APIModule) SetIdentityModule(mod *identity.Module) {
	m.identityModule = mod
}

// SetAssetsModule wires the assets module. Must be called before Start.
func (m *APIModule) SetAssetsModule(mod *assets.Module) {
	m.assetsModule = mod
}

// SetBlobModule wires the blobstore module. Must be called before Start.
func (m *APIModule) SetBlobModule(mod *blobstore.Module) {
	m.blobModule = mod
}

// SetRateLimiter wires the optional ticket-issuance rate limiter. Leaving it
// unset disables rate limiting.
func (m *APIModule) SetRateLimiter(limiter *ratelimit.Limiter) {
	m.limiter = limiter
}

// Start resolves the collaborating services and begins serving HTTP. The API
// module must be registered after the modules it depends on so their services
// exist by the time this runs.
func (m *APIModule) Start(_ context.Context) error {
	if m.identityModule == nil || m.assetsModule == nil || m.blobModule == nil {
		return fmt.Errorf("api module requires identity, assets, and blobstore modules to be set")
	}

	m.identitySvc = m.identityModule.Service()
	m.assets = m.assetsModule.Service()
	m.blobs = m.blobModule.Service()
	if m.identitySvc == nil || m.assets == nil || m.blobs == nil {
		return fmt.Errorf("api module started before its dependencies")
	}

	gin.SetMode(gin.ReleaseMode)
	m.router = gin.New()
	m.router.Use(gin.Recovery())
	m.router.Use(loggerMiddleware())

	m.setupRoutes()

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.port),
		Handler:           m.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		m.logger.Info("API server listening", "port", m.port)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	m.logger.Info("API server stopped")
	return nil
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.server == nil {
		return mono.HealthStatus{Healthy: false, Message: "server not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"port": m.port,
		},
	}
}
