package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa uma conta autenticável (staff ou colaborador).
type Usuario struct {
	ID        uuid.UUID
	Nome      string
	Email     string
	SenhaHash string
	Role      string
	Ativo     bool
	CriadoEm  time.Time
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa campos do insert de refresh.
type InsertRefreshTokenParams struct {
	Subject   uuid.UUID
	TokenHash string
	Expiracao time.Time
}
