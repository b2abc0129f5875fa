package repository

import (
	"context"
	"database/sql"
	"errors"

	"pet_chat/internal/domain"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository читает справочник пользователей (только чтение)
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, display_name, created_at
		FROM users
		WHERE id = $1
	`

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user by ID", "error", err)
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	users := make(map[uuid.UUID]*domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, email, display_name, created_at
		FROM users
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		r.log.Error("Failed to get users", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt); err != nil {
			r.log.Error("Failed to scan user", "error", err)
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

type sqliteUserRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLiteUserRepository(db *sql.DB, log logger.Logger) UserRepository {
	return &sqliteUserRepository{db: db, log: log}
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, created_at FROM users WHERE id = ?
	`, id.String()).Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user by ID", "error", err)
		return nil, err
	}
	return user, nil
}

func (r *sqliteUserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	users := make(map[uuid.UUID]*domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	in, args := placeholders(ids)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, display_name, created_at FROM users WHERE id IN (`+in+`)
	`, args...)
	if err != nil {
		r.log.Error("Failed to get users", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt); err != nil {
			r.log.Error("Failed to scan user", "error", err)
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}
