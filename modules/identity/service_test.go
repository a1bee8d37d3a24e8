package identity

import (
	"context"
	"errors"
	"testing"

	domain "github.com/example/asset-vault/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestService creates a service backed by an in-memory SQLite database.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewService(NewUserRepository(db), NewPasswordHasher(), NewTokenManager(DefaultTokenConfig()))
}

func TestService_Register(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	t.Run("valid registration", func(t *testing.T) {
		user, err := service.Register(ctx, "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if user.ID == "" {
			t.Error("expected a generated user id")
		}
		if user.PasswordHash == "password123" {
			t.Error("password stored in plaintext")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := service.Register(ctx, "alice@example.com", "password456")
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("expected ErrUserExists, got %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := service.Register(ctx, "not-an-email", "password123")
		if !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("expected ErrInvalidEmail, got %v", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := service.Register(ctx, "bob@example.com", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})
}

func TestService_Login(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		tokens, err := service.Login(ctx, "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			t.Error("expected both tokens to be issued")
		}
		if tokens.TokenType != "Bearer" {
			t.Errorf("expected token type Bearer, got %q", tokens.TokenType)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Login(ctx, "alice@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.Login(ctx, "nobody@example.com", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestService_RefreshTokens(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tokens, err := service.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	fresh, err := service.RefreshTokens(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Error("expected a full fresh token pair")
	}

	// An access token must not work as a refresh token.
	if _, err := service.RefreshTokens(ctx, tokens.AccessToken); err == nil {
		t.Error("expected refresh with an access token to fail")
	}
}

func TestService_ResolvePrincipal(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tokens, err := service.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	principal, err := service.ResolvePrincipal(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("ResolvePrincipal() error = %v", err)
	}
	if principal.ID != user.ID {
		t.Errorf("expected principal id %q, got %q", user.ID, principal.ID)
	}
	if principal.Email != "alice@example.com" {
		t.Errorf("expected email %q, got %q", "alice@example.com", principal.Email)
	}

	if _, err := service.ResolvePrincipal(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestService_FindPrincipalByEmail(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	found, err := service.FindPrincipalByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindPrincipalByEmail() error = %v", err)
	}
	if found == nil || found.ID != user.ID {
		t.Errorf("expected principal %q, got %+v", user.ID, found)
	}

	// Absent principals are (nil, nil), not an error; the caller decides how
	// missing grantees surface.
	found, err = service.FindPrincipalByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("FindPrincipalByEmail() unexpected error = %v", err)
	}
	if found != nil {
		t.Errorf("expected nil principal, got %+v", found)
	}
}
