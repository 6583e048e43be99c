package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso às tabelas de perfis e unidades.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `
    p.id, p.user_id, p.full_name, p.email, p.cpf, p.phone, p.unit_id, u.name,
    p.department, p.position, p.birthday, p.created_at, p.updated_at`

const profileFrom = `
    FROM profiles p
    LEFT JOIN units u ON u.id = p.unit_id`

// GetByUserID busca o perfil vinculado à conta.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+profileColumns+profileFrom+` WHERE p.user_id = $1`, userID)
	return scanProfile(row)
}

// ListColaboradores lista perfis de colaboradores. Contas com papel de
// staff nunca aparecem aqui: os conjuntos são disjuntos por invariante.
func (r *Repository) ListColaboradores(ctx context.Context, staffRoles []string) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT`+profileColumns+profileFrom+`
        WHERE NOT EXISTS (
            SELECT 1 FROM user_roles ur
            WHERE ur.user_id = p.user_id AND ur.role = ANY($1)
        )
        ORDER BY p.full_name ASC
    `, staffRoles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		prof, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *prof)
	}
	return profiles, rows.Err()
}

// Upsert cria ou atualiza o perfil da conta.
func (r *Repository) Upsert(ctx context.Context, input UpsertInput) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO profiles (user_id, full_name, email, cpf, phone, unit_id, department, position, birthday)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id) DO UPDATE SET
            full_name = EXCLUDED.full_name,
            email = EXCLUDED.email,
            cpf = EXCLUDED.cpf,
            phone = EXCLUDED.phone,
            unit_id = EXCLUDED.unit_id,
            department = EXCLUDED.department,
            position = EXCLUDED.position,
            birthday = EXCLUDED.birthday,
            updated_at = now()
        RETURNING id
    `, input.UserID, strings.TrimSpace(input.FullName), input.Email, input.CPF, input.Phone,
		input.UnitID, input.Department, input.Position, input.Birthday)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, input.UserID)
}

// ListUnits lista unidades em ordem alfabética.
func (r *Repository) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM units ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var unit Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.CreatedAt); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// CreateUnit insere nova unidade.
func (r *Repository) CreateUnit(ctx context.Context, name string) (*Unit, error) {
	var unit Unit
	err := r.pool.QueryRow(ctx, `
        INSERT INTO units (name) VALUES ($1)
        RETURNING id, name, created_at
    `, strings.TrimSpace(name)).Scan(&unit.ID, &unit.Name, &unit.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Email, &p.CPF, &p.Phone,
		&p.UnitID, &p.UnitName, &p.Department, &p.Position, &p.Birthday, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
