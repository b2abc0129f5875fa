package domain

import "github.com/google/uuid"

// Pet - профиль питомца из каталога (только чтение). OwnerID пуст, если владелец удален.
type Pet struct {
	ID       uuid.UUID  `json:"id"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`
	Name     string     `json:"name"`
	ImageURL *string    `json:"image_url,omitempty"`
	Breed    *string    `json:"breed,omitempty"`
	Gender   *string    `json:"gender,omitempty"`
	Age      *int       `json:"age,omitempty"`
}

type PetSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	ImageURL *string   `json:"image_url,omitempty"`
	Breed    *string   `json:"breed,omitempty"`
	Gender   *string   `json:"gender,omitempty"`
	Age      *int      `json:"age,omitempty"`
}

func (p *Pet) Summary() PetSummary {
	return PetSummary{
		ID:       p.ID,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Breed:    p.Breed,
		Gender:   p.Gender,
		Age:      p.Age,
	}
}
