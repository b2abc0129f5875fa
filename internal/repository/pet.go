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

// PetRepository читает каталог питомцев, которым владеет соседний сервис
type PetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pet, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Pet, error)
}

type petRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewPetRepository(db *pgxpool.Pool, log logger.Logger) PetRepository {
	return &petRepository{db: db, log: log}
}

func (r *petRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pet, error) {
	pet := &domain.Pet{}
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, image_url, breed, gender, age
		FROM pets
		WHERE id = $1
	`, id).Scan(&pet.ID, &pet.OwnerID, &pet.Name, &pet.ImageURL, &pet.Breed, &pet.Gender, &pet.Age)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPetNotFound
		}
		r.log.Error("Failed to get pet by ID", "error", err, "pet_id", id)
		return nil, err
	}
	return pet, nil
}

func (r *petRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Pet, error) {
	pets := make(map[uuid.UUID]*domain.Pet, len(ids))
	if len(ids) == 0 {
		return pets, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, image_url, breed, gender, age
		FROM pets
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		r.log.Error("Failed to get pets", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		pet := &domain.Pet{}
		if err := rows.Scan(&pet.ID, &pet.OwnerID, &pet.Name, &pet.ImageURL, &pet.Breed, &pet.Gender, &pet.Age); err != nil {
			r.log.Error("Failed to scan pet", "error", err)
			return nil, err
		}
		pets[pet.ID] = pet
	}
	return pets, rows.Err()
}

type sqlitePetRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLitePetRepository(db *sql.DB, log logger.Logger) PetRepository {
	return &sqlitePetRepository{db: db, log: log}
}

func scanSQLitePet(row rowScanner) (*domain.Pet, error) {
	pet := &domain.Pet{}
	var (
		ownerID  uuid.NullUUID
		imageURL sql.NullString
		breed    sql.NullString
		gender   sql.NullString
		age      sql.NullInt64
	)
	if err := row.Scan(&pet.ID, &ownerID, &pet.Name, &imageURL, &breed, &gender, &age); err != nil {
		return nil, err
	}
	if ownerID.Valid {
		pet.OwnerID = &ownerID.UUID
	}
	if imageURL.Valid {
		pet.ImageURL = &imageURL.String
	}
	if breed.Valid {
		pet.Breed = &breed.String
	}
	if gender.Valid {
		pet.Gender = &gender.String
	}
	if age.Valid {
		a := int(age.Int64)
		pet.Age = &a
	}
	return pet, nil
}

func (r *sqlitePetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pet, error) {
	pet, err := scanSQLitePet(r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, image_url, breed, gender, age FROM pets WHERE id = ?
	`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrPetNotFound
		}
		r.log.Error("Failed to get pet by ID", "error", err, "pet_id", id)
		return nil, err
	}
	return pet, nil
}

func (r *sqlitePetRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Pet, error) {
	pets := make(map[uuid.UUID]*domain.Pet, len(ids))
	if len(ids) == 0 {
		return pets, nil
	}

	in, args := placeholders(ids)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, image_url, breed, gender, age FROM pets WHERE id IN (`+in+`)
	`, args...)
	if err != nil {
		r.log.Error("Failed to get pets", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		pet, err := scanSQLitePet(rows)
		if err != nil {
			r.log.Error("Failed to scan pet", "error", err)
			return nil, err
		}
		pets[pet.ID] = pet
	}
	return pets, rows.Err()
}
