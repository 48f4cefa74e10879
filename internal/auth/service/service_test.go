package service

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	accountrepo "github.com/smallbiznis/storefront/internal/account/repository"
	authdomain "github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/smallbiznis/storefront/internal/auth/password"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (authdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := testutil.NewDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      config.Config{AuthJWTSecret: "test-secret", AuthSessionTTL: time.Hour},
		Clock:    fake,
		Accounts: accountrepo.Provide(),
	})
	return svc, db, fake
}

func seedAccount(t *testing.T, db *gorm.DB, id int64, email, plain string) {
	t.Helper()
	testutil.InsertAccount(t, db, id, email)
	if plain == "" {
		return
	}
	hash, err := password.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := db.Exec(`UPDATE accounts SET password_hash = ? WHERE id = ?`, hash, id).Error; err != nil {
		t.Fatalf("set hash: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedAccount(t, db, 1, "alice@example.com", "correct-password")

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	if err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWithoutPasswordHash(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedAccount(t, db, 1, "buyer@example.com", "")

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "buyer@example.com",
		Password: "anything-at-all",
	})
	if err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginIssuesTokenThatAuthenticates(t *testing.T) {
	svc, db, fake := newTestService(t)
	seedAccount(t, db, 7, "alice@example.com", "correct-password")

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "  Alice@Example.com",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.ExpiresAt.Equal(fake.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", result.ExpiresAt)
	}

	identity, err := svc.Authenticate(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.AccountID.Int64() != 7 || identity.Email != "alice@example.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	fake.Advance(2 * time.Hour)
	if _, err := svc.Authenticate(context.Background(), result.Token); err != authdomain.ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedAccount(t, db, 9, "gone@example.com", "correct-password")

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "gone@example.com",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	repo := accountrepo.Provide()
	if err := repo.Delete(context.Background(), db, accountdomain.Account{ID: 9, Email: "gone@example.com"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), result.Token); err != authdomain.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	svc, db, _ := newTestService(t)
	testutil.InsertAccount(t, db, 3, "legacy@example.com")
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := db.Exec(`UPDATE accounts SET password_hash = ? WHERE id = ?`, string(legacy), 3).Error; err != nil {
		t.Fatalf("set hash: %v", err)
	}

	if _, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "legacy@example.com",
		Password: "old-password",
	}); err != nil {
		t.Fatalf("login: %v", err)
	}

	var stored string
	if err := db.Raw(`SELECT password_hash FROM accounts WHERE id = ?`, 3).Scan(&stored).Error; err != nil {
		t.Fatalf("read hash: %v", err)
	}
	if !password.Verify("old-password", stored) {
		t.Fatalf("upgraded hash does not verify")
	}
	if _, rehash := password.Check("old-password", stored); rehash {
		t.Fatalf("expected argon2id hash after login, got %q", stored)
	}
}
