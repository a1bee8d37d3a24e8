package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/asset-vault/domain/user"
	"github.com/example/asset-vault/middleware/ratelimit"
	apimod "github.com/example/asset-vault/modules/api"
	assetsmod "github.com/example/asset-vault/modules/assets"
	blobstoremod "github.com/example/asset-vault/modules/blobstore"
	identitymod "github.com/example/asset-vault/modules/identity"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

// blobStorePort adapts the blobstore module to the assets module's storage
// port. Resolution is deferred to call time because the blobstore service
// only exists once its module has started.
type blobStorePort struct {
	mod *blobstoremod.Module
}

func (p *blobStorePort) SignUpload(path string, ttl time.Duration) (assetsmod.SignedURL, error) {
	return p.mod.Service().SignUpload(path, ttl)
}

func (p *blobStorePort) SignDownload(path string, ttl time.Duration) (assetsmod.SignedURL, error) {
	return p.mod.Service().SignDownload(path, ttl)
}

func (p *blobStorePort) Read(ctx context.Context, path string) ([]byte, error) {
	return p.mod.Service().Read(ctx, path)
}

func (p *blobStorePort) Remove(ctx context.Context, path string) error {
	return p.mod.Service().Remove(ctx, path)
}

// principalDirectoryPort adapts the identity module to the assets module's
// principal lookup port, again resolving at call time.
type principalDirectoryPort struct {
	mod *identitymod.Module
}

func (p *principalDirectoryPort) FindPrincipalByEmail(ctx context.Context, email string) (*user.Principal, error) {
	return p.mod.Service().FindPrincipalByEmail(ctx, email)
}

func main() {
	// Load configuration from environment
	maxUploadSize := getEnvInt64("MAX_UPLOAD_SIZE", assetsmod.DefaultMaxUploadSize)
	storagePath := getEnv("STORAGE_PATH", "/tmp/asset-vault")
	redisAddr := getEnv("REDIS_ADDR", "")

	log.Println("=== Asset Vault ===")
	log.Printf("Max Upload Size: %d bytes", maxUploadSize)
	log.Printf("Storage Path: %s", storagePath)

	// Create mono application with embedded NATS JetStream
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(storagePath),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Create modules
	identityModule := identitymod.NewModule(app.Logger())
	blobModule := blobstoremod.NewModule(app.Logger())
	assetsModule := assetsmod.NewModule(maxUploadSize, assetsmod.FaultConfig{}, app.Logger())
	apiModule := apimod.NewModule(maxUploadSize, app.Logger())

	// Wire up dependencies
	assetsModule.SetBlobStore(&blobStorePort{mod: blobModule})
	assetsModule.SetPrincipalDirectory(&principalDirectoryPort{mod: identityModule})
	apiModule.SetIdentityModule(identityModule)
	apiModule.SetAssetsModule(assetsModule)
	apiModule.SetBlobModule(blobModule)

	// Ticket issuance rate limiting is optional; it activates only when a
	// Redis address is configured.
	var limiter *ratelimit.Limiter
	if redisAddr != "" {
		limiter = ratelimit.New(ratelimit.Config{
			RedisAddr: redisAddr,
			Limit:     getEnvInt("TICKET_RATE_LIMIT", 30),
			Window:    time.Minute,
			KeyPrefix: "tickets:",
		})
		apiModule.SetRateLimiter(limiter)
		log.Printf("Ticket rate limiting enabled via %s", redisAddr)
	}

	// Register modules in dependency order; the API module starts last.
	app.Register(identityModule)
	app.Register(blobModule)
	app.Register(assetsModule)
	app.Register(apiModule)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Println("Endpoints:")
	log.Println("  GET    /health                                 - Health check")
	log.Println("  POST   /api/v1/auth/register                   - Register")
	log.Println("  POST   /api/v1/auth/login                      - Login")
	log.Println("  POST   /api/v1/auth/refresh                    - Refresh tokens")
	log.Println("  GET    /api/v1/assets                          - List visible assets")
	log.Println("  POST   /api/v1/assets/tickets                  - Issue an upload ticket")
	log.Println("  POST   /api/v1/assets/:id/finalize             - Finalize an upload")
	log.Println("  PATCH  /api/v1/assets/:id                      - Rename an asset")
	log.Println("  POST   /api/v1/assets/:id/shares               - Grant a share")
	log.Println("  DELETE /api/v1/assets/:id/shares/:email        - Revoke a share")
	log.Println("  GET    /api/v1/assets/:id/download             - Request a download link")
	log.Println("  DELETE /api/v1/assets/:id                      - Delete an asset")
	log.Println("  PUT    /blob/upload?token=...                  - Raw signed upload")
	log.Println("  GET    /blob/download?token=...                - Raw signed download")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
			"rate-limiter": func(ctx context.Context) error {
				if limiter == nil {
					return nil
				}
				return limiter.Close()
			},
		},
	)

	// Wait for shutdown signal
	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}
