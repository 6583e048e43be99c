package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ações registradas na trilha de auditoria.
const (
	ActionCreated       = "created"
	ActionReviewStarted = "review_started"
	ActionApproved      = "approved"
	ActionRejected      = "rejected"
)

// Entry é um registro imutável da trilha de auditoria.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Repository grava e consulta a trilha de auditoria (append-only).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx registra um evento dentro da transação do chamador, para que a
// trilha seja atômica com a mudança de estado que a originou.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, entityType string, entityID uuid.UUID, action string, details any) error {
	payload, err := marshalDetails(details)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertSQL, entityType, entityID, action, payload)
	return err
}

// ListByEntity devolve os eventos de uma entidade, mais recentes primeiro.
func (r *Repository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, entity_type, entity_id, action, details, created_at
        FROM logs
        WHERE entity_type = $1 AND entity_id = $2
        ORDER BY created_at DESC
    `, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const insertSQL = `
    INSERT INTO logs (entity_type, entity_id, action, details)
    VALUES ($1, $2, $3, $4)
`

func marshalDetails(details any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}
