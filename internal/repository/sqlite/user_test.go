package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/model"
)

func githubUser(id int64, login string) *model.User {
	return &model.User{
		GitHubID:  &id,
		Login:     login,
		Email:     login + "@example.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/123",
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := githubUser(12345, "testuser")
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Upsert() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set user.CreatedAt")
	}
}

func TestUserUpsert_ExistingUser_KeepsID(t *testing.T) {
	db := newTestDB(t)

	first := githubUser(777, "oldlogin")
	if err := db.Upsert(context.Background(), first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Same GitHub account, changed profile
	second := githubUser(777, "newlogin")
	second.AvatarURL = "https://example.com/new.png"
	if err := db.Upsert(context.Background(), second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Upsert() changed ID from %q to %q", first.ID, second.ID)
	}

	got, err := db.GetUserByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Login != "newlogin" {
		t.Errorf("Login = %q, want %q", got.Login, "newlogin")
	}
	if got.GitHubID == nil || *got.GitHubID != 777 {
		t.Errorf("GitHubID = %v, want 777", got.GitHubID)
	}
}

func TestUserUpsert_RequiresGitHubID(t *testing.T) {
	db := newTestDB(t)

	if err := db.Upsert(context.Background(), &model.User{Login: "nobody"}); err == nil {
		t.Fatal("Upsert() should reject a user without a GitHub ID")
	}
}

// =========================================================================
// LOCAL ACCOUNT TESTS
// =========================================================================

func TestUserCreateLocal(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Login: "ada", Email: "  Ada@Example.com ", PasswordHash: "hash"}
	if err := db.CreateLocal(context.Background(), user); err != nil {
		t.Fatalf("CreateLocal() error = %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized lower-case", user.Email)
	}

	got, err := db.GetUserByEmail(context.Background(), "ADA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
	if got.GitHubID != nil {
		t.Errorf("GitHubID = %v, want nil for local account", *got.GitHubID)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "hash")
	}
}

func TestUserCreateLocal_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateLocal(context.Background(), &model.User{Login: "a", Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateLocal() error = %v", err)
	}
	err := db.CreateLocal(context.Background(), &model.User{Login: "b", Email: "A@example.com", PasswordHash: "h"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestUserCreateLocal_ManyWithoutGitHubID(t *testing.T) {
	db := newTestDB(t)

	// NULL github_id must not trip the UNIQUE constraint.
	for _, email := range []string{"one@example.com", "two@example.com"} {
		if err := db.CreateLocal(context.Background(), &model.User{Login: email, Email: email, PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateLocal(%s) error = %v", email, err)
		}
	}
}

func TestUserGetByEmail_IgnoresGitHubAccounts(t *testing.T) {
	db := newTestDB(t)

	if err := db.Upsert(context.Background(), githubUser(1, "octo")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	_, err := db.GetUserByEmail(context.Background(), "octo@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUserTimestampsRoundTrip(t *testing.T) {
	db := newTestDB(t)

	user := githubUser(42, "clock")
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if d := got.CreatedAt.Sub(user.CreatedAt); d > time.Second || d < -time.Second {
		t.Errorf("CreatedAt drifted by %v", d)
	}
}
