package auth

import (
	"context"
	"testing"
)

func TestSeedUsers_FromConfig(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	logger := &recordingLogger{}
	ctx := context.Background()

	created, generated, err := SeedUsers(ctx, repo, []SeedAccount{
		{Username: "Tomoko", Password: "tomoko123"},
		{Username: "Brad", Password: "brad123", Role: RoleUser},
		{Username: "admin", Password: "admin123", Role: RoleAdmin},
	}, logger)
	if err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}
	if created != 3 {
		t.Errorf("created = %d, want 3", created)
	}
	if generated != "" {
		t.Error("no password should be generated when accounts are configured")
	}

	tomoko, err := repo.GetByUsername(ctx, "Tomoko")
	if err != nil {
		t.Fatalf("GetByUsername(Tomoko) error = %v", err)
	}
	if tomoko.Role != RoleUser {
		t.Errorf("Tomoko role = %q, want default %q", tomoko.Role, RoleUser)
	}
	if ok, _ := VerifyPassword("tomoko123", tomoko.PasswordHash); !ok {
		t.Error("seeded password should verify")
	}

	admin, _ := repo.GetByUsername(ctx, "admin")
	if admin == nil || admin.Role != RoleAdmin {
		t.Errorf("admin = %+v, want admin role", admin)
	}
}

func TestSeedUsers_GeneratesAdmin(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	logger := &recordingLogger{}
	ctx := context.Background()

	created, password, err := SeedUsers(ctx, repo, nil, logger)
	if err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}
	if created != 1 || password == "" {
		t.Fatalf("SeedUsers() = (%d, %q), want one generated admin", created, password)
	}

	admin, err := repo.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsername(admin) error = %v", err)
	}
	if ok, _ := VerifyPassword(password, admin.PasswordHash); !ok {
		t.Error("generated password should verify against stored hash")
	}
	if len(logger.warns) != 1 {
		t.Errorf("expected one warning about the generated password, got %v", logger.warns)
	}
}

func TestSeedUsers_SkipsWhenUsersExist(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	seedTestUser(t, db, "existing", RoleAdmin)

	created, _, err := SeedUsers(context.Background(), repo,
		[]SeedAccount{{Username: "Brad", Password: "brad123"}}, &recordingLogger{})
	if err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	if count, _ := repo.Count(context.Background()); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestSeedUsers_MissingPassword(t *testing.T) {
	repo := NewUserRepository(testDB(t))

	_, _, err := SeedUsers(context.Background(), repo,
		[]SeedAccount{{Username: "Brad"}}, &recordingLogger{})
	if err == nil {
		t.Error("SeedUsers() should fail without a password")
	}
}
