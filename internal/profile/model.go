package profile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("perfil não encontrado")
	ErrUnitNotFound = errors.New("unidade não encontrada")
)

// Profile é o cadastro de uma pessoa (colaborador ou staff).
type Profile struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	FullName   string     `json:"full_name"`
	Email      *string    `json:"email,omitempty"`
	CPF        *string    `json:"cpf,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	UnitID     *uuid.UUID `json:"unit_id,omitempty"`
	UnitName   *string    `json:"unit_name,omitempty"`
	Department *string    `json:"department,omitempty"`
	Position   *string    `json:"position,omitempty"`
	Birthday   *time.Time `json:"birthday,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Unit é uma unidade/filial à qual perfis se vinculam.
type Unit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertInput agrupa campos editáveis do perfil.
type UpsertInput struct {
	UserID     uuid.UUID
	FullName   string
	Email      *string
	CPF        *string
	Phone      *string
	UnitID     *uuid.UUID
	Department *string
	Position   *string
	Birthday   *time.Time
}
