package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries provê acesso às tabelas de usuários e sessões.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria instância de Queries.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const usuarioColumns = `
    u.id, u.nome, u.email, u.senha_hash, ur.role, u.ativo, u.criado_em`

const usuarioFrom = `
    FROM usuarios u
    JOIN user_roles ur ON ur.user_id = u.id`

// GetUsuarioByEmail busca conta pelo e-mail normalizado.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT`+usuarioColumns+usuarioFrom+` WHERE lower(u.email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUsuario(row)
}

// GetUsuarioByID busca conta pelo identificador.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT`+usuarioColumns+usuarioFrom+` WHERE u.id = $1`, id)
	return scanUsuario(row)
}

// ListUsuariosByRoles lista contas cujo papel pertence ao conjunto informado.
func (q *Queries) ListUsuariosByRoles(ctx context.Context, roles []string) ([]Usuario, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT`+usuarioColumns+usuarioFrom+` WHERE ur.role = ANY($1) ORDER BY u.nome ASC`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []Usuario
	for rows.Next() {
		user, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUsuario insere conta e papel em uma transação.
func (q *Queries) CreateUsuario(ctx context.Context, nome, email, senhaHash, role string) (Usuario, error) {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Usuario{}, err
	}
	defer tx.Rollback(ctx)

	var user Usuario
	err = tx.QueryRow(ctx, `
        INSERT INTO usuarios (nome, email, senha_hash, ativo)
        VALUES ($1, lower($2), $3, TRUE)
        RETURNING id, nome, email, senha_hash, ativo, criado_em
    `, strings.TrimSpace(nome), strings.TrimSpace(email), senhaHash).Scan(
		&user.ID, &user.Nome, &user.Email, &user.SenhaHash, &user.Ativo, &user.CriadoEm)
	if err != nil {
		if isUniqueViolation(err) {
			return Usuario{}, ErrEmailTaken
		}
		return Usuario{}, err
	}

	// papel único por usuário; substitui qualquer vínculo anterior
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, user.ID); err != nil {
		return Usuario{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, user.ID, role); err != nil {
		return Usuario{}, err
	}
	user.Role = role

	if err := tx.Commit(ctx); err != nil {
		return Usuario{}, err
	}
	return user, nil
}

// DeleteUsuario remove conta, papel e perfil associados.
func (q *Queries) DeleteUsuario(ctx context.Context, id uuid.UUID) error {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM usuarios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// UpdateSenha troca o hash de senha da conta.
func (q *Queries) UpdateSenha(ctx context.Context, id uuid.UUID, senhaHash string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE usuarios SET senha_hash = $2 WHERE id = $1`, id, senhaHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole substitui o papel do usuário (vínculo é sempre único).
func (q *Queries) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, id, role); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertRefreshToken grava novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	var token TokenRefresh
	err := q.pool.QueryRow(ctx, `
        INSERT INTO tokens_refresh (subject, token_hash, expiracao)
        VALUES ($1, $2, $3)
        RETURNING id, subject, token_hash, expiracao, criado_em, revogado
    `, arg.Subject, arg.TokenHash, arg.Expiracao).Scan(
		&token.ID, &token.Subject, &token.TokenHash, &token.Expiracao, &token.CriadoEm, &token.Revogado)
	return token, err
}

// GetRefreshTokenByHash busca refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	var token TokenRefresh
	err := q.pool.QueryRow(ctx, `
        SELECT id, subject, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh
        WHERE token_hash = $1
    `, tokenHash).Scan(
		&token.ID, &token.Subject, &token.TokenHash, &token.Expiracao, &token.CriadoEm, &token.Revogado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return token, nil
}

// RevokeRefreshToken marca token como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := q.pool.Exec(ctx, `UPDATE tokens_refresh SET revogado = TRUE WHERE token_hash = $1`, tokenHash)
	return err
}

// InvalidateOtherRefreshTokens revoga sessões antigas do mesmo sujeito.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, keepHash string) error {
	_, err := q.pool.Exec(ctx, `
        UPDATE tokens_refresh SET revogado = TRUE
        WHERE subject = $1 AND token_hash <> $2 AND NOT revogado
    `, subject, keepHash)
	return err
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var user Usuario
	if err := row.Scan(&user.ID, &user.Nome, &user.Email, &user.SenhaHash, &user.Role, &user.Ativo, &user.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
