// Package testutil содержит общие помощники для тестов на SQLite в памяти.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"pet_chat/internal/repository"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
)

// Store - репозитории поверх изолированной базы в памяти
type Store struct {
	DB    *sql.DB
	Repos *repository.Repositories
}

func NewTestSQLiteStore(t *testing.T) *Store {
	t.Helper()

	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &Store{
		DB:    db,
		Repos: repository.NewSQLiteRepositories(db, nil, logger.NewNop()),
	}
}

// SeedUser добавляет пользователя в справочник
func (s *Store) SeedUser(t *testing.T, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := s.DB.Exec(`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), name+"@example.com", name, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

// SeedPet добавляет питомца; ownerID == nil - питомец без владельца
func (s *Store) SeedPet(t *testing.T, ownerID *uuid.UUID, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	var owner sql.NullString
	if ownerID != nil {
		owner = sql.NullString{String: ownerID.String(), Valid: true}
	}
	_, err := s.DB.Exec(`INSERT INTO pets (id, owner_id, name, breed, gender, age) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), owner, name, "Beagle", "male", 3)
	if err != nil {
		t.Fatalf("failed to seed pet: %v", err)
	}
	return id
}

func (s *Store) DeleteUser(t *testing.T, id uuid.UUID) {
	t.Helper()
	if _, err := s.DB.Exec(`DELETE FROM users WHERE id = ?`, id.String()); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
}

func (s *Store) DeletePet(t *testing.T, id uuid.UUID) {
	t.Helper()
	if _, err := s.DB.Exec(`DELETE FROM pets WHERE id = ?`, id.String()); err != nil {
		t.Fatalf("failed to delete pet: %v", err)
	}
}

// CountConversations считает все переписки, включая неактивные
func (s *Store) CountConversations(t *testing.T) int {
	t.Helper()
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	return n
}
