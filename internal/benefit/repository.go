package benefit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enzononato/benefit-hub-pro/internal/auditlog"
	"github.com/enzononato/benefit-hub-pro/internal/db"
)

// Repository provê acesso à tabela de solicitações. A trilha de
// auditoria é gravada na mesma transação das transições de estado.
type Repository struct {
	pool  *pgxpool.Pool
	audit *auditlog.Repository
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool, audit *auditlog.Repository) *Repository {
	return &Repository{pool: pool, audit: audit}
}

// EntityType identifica solicitações na trilha de auditoria.
const EntityType = "benefit_request"

const requestColumns = `
    id, protocol, benefit_type, status, details, rejection_reason, closing_message,
    approved_value, pdf_url, pdf_file_name, user_id, reviewed_by, reviewed_at,
    closed_at, created_at, updated_at, account_id, conversation_id`

// Create insere solicitação com status inicial aberta e registra a
// abertura na trilha de auditoria, tudo em uma transação.
func (r *Repository) Create(ctx context.Context, input CreateInput, protocol string) (*Request, error) {
	var request *Request
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO benefit_requests (protocol, benefit_type, status, details, user_id, account_id, conversation_id)
            VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
            RETURNING`+requestColumns+`
        `,
			protocol,
			strings.ToLower(strings.TrimSpace(input.BenefitType)),
			StatusAberta,
			strings.TrimSpace(input.Details),
			input.UserID,
			input.AccountID,
			input.ConversationID,
		)

		created, err := scanRequest(row)
		if err != nil {
			return err
		}

		if err := r.audit.InsertTx(ctx, tx, EntityType, created.ID, auditlog.ActionCreated, map[string]any{
			"protocolo": created.Protocol,
			"tipo":      created.BenefitType,
		}); err != nil {
			return err
		}

		request = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Get busca uma solicitação específica.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+requestColumns+` FROM benefit_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// ListAll devolve todas as solicitações com os dados de perfil usados na
// busca e ordenação. O recorte visível é calculado em memória pelo
// pipeline, espelhando o conjunto completo que o painel manipula.
func (r *Repository) ListAll(ctx context.Context) ([]ListItem, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT`+prefixColumns("br")+`,
               COALESCE(p.full_name, ''), COALESCE(p.cpf, ''), COALESCE(p.phone, '')
        FROM benefit_requests br
        LEFT JOIN profiles p ON p.user_id = br.user_id
        ORDER BY br.created_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var item ListItem
		if err := scanRequestInto(rows, &item.Request, &item.FullName, &item.CPF, &item.Phone); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByUser devolve o histórico de solicitações de um colaborador.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT`+requestColumns+`
        FROM benefit_requests
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ClaimReview efetiva a transição aberta -> em_analise com atualização
// condicional: só o primeiro agente assume a análise, eliminando a corrida
// entre dois revisores abrindo a mesma solicitação. A trilha de auditoria
// é gravada na mesma transação.
func (r *Repository) ClaimReview(ctx context.Context, id, reviewerID uuid.UUID, now time.Time) (*Request, error) {
	var req *Request
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE benefit_requests
            SET status = $3, reviewed_by = $2, reviewed_at = $4, updated_at = $4
            WHERE id = $1 AND status = $5 AND reviewed_by IS NULL
            RETURNING`+requestColumns+`
        `, id, reviewerID, StatusEmAnalise, now, StatusAberta)

		claimed, err := scanRequest(row)
		if err != nil {
			return err
		}

		if err := r.audit.InsertTx(ctx, tx, EntityType, id, auditlog.ActionReviewStarted, map[string]any{
			"protocol":    claimed.Protocol,
			"status":      claimed.Status,
			"reviewed_by": reviewerID.String(),
		}); err != nil {
			return err
		}

		req = claimed
		return nil
	})
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// determina por que a condição falhou
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if IsTerminal(current.Status) {
		return nil, ErrTerminal
	}
	return nil, ErrAlreadyClaimed
}

// Close persiste o encerramento e a trilha de auditoria em uma única
// transação: ou tudo é gravado, ou nada é. A atualização é condicional
// ao status em_analise, como em ClaimReview: dois encerramentos
// concorrentes nunca sobrescrevem um registro já terminal, e só o
// vencedor dispara efeitos colaterais.
func (r *Repository) Close(ctx context.Context, id uuid.UUID, finalStatus, auditAction string, input CloseInput, now time.Time) (*Request, error) {
	var req *Request
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE benefit_requests
            SET status = $2,
                rejection_reason = NULLIF($3, ''),
                closing_message = $4,
                approved_value = $5,
                pdf_url = NULLIF($6, ''),
                pdf_file_name = NULLIF($7, ''),
                closed_at = $8,
                updated_at = $8
            WHERE id = $1 AND status = $9
            RETURNING`+requestColumns+`
        `, id, finalStatus, strings.TrimSpace(input.RejectionReason), strings.TrimSpace(input.ClosingMessage),
			input.ApprovedValue, strings.TrimSpace(input.PDFURL), strings.TrimSpace(input.PDFFileName), now, StatusEmAnalise)

		closed, err := scanRequest(row)
		if err != nil {
			return err
		}

		if err := r.audit.InsertTx(ctx, tx, EntityType, id, auditAction, map[string]any{
			"protocol": closed.Protocol,
			"status":   closed.Status,
			"message":  closed.ClosingMessage,
		}); err != nil {
			return err
		}

		req = closed
		return nil
	})
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// determina por que a condição falhou
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if IsTerminal(current.Status) {
		return nil, ErrTerminal
	}
	return nil, ErrNotUnderReview
}

// AttachPDF grava a URL do documento enviado para a solicitação. A
// atualização é condicional: registros terminais nunca recebem documento,
// mesmo quando a leitura prévia do serviço estava desatualizada.
func (r *Repository) AttachPDF(ctx context.Context, id uuid.UUID, pdfURL, fileName string, now time.Time) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE benefit_requests
        SET pdf_url = $2, pdf_file_name = $3, updated_at = $4
        WHERE id = $1 AND status <> $5 AND status <> $6
        RETURNING`+requestColumns+`
    `, id, pdfURL, fileName, now, StatusConcluida, StatusRecusada)

	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if IsTerminal(current.Status) {
		return nil, ErrTerminal
	}
	return nil, ErrNotFound
}

// Trail devolve a trilha de auditoria da solicitação, mais recente
// primeiro.
func (r *Repository) Trail(ctx context.Context, id uuid.UUID) ([]auditlog.Entry, error) {
	return r.audit.ListByEntity(ctx, EntityType, id)
}

// Stats agrega contagens por status.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = $1),
               COUNT(*) FILTER (WHERE status = $2),
               COUNT(*) FILTER (WHERE status = $3),
               COUNT(*) FILTER (WHERE status = $4)
        FROM benefit_requests
    `, StatusAberta, StatusEmAnalise, StatusConcluida, StatusRecusada).Scan(
		&stats.Total, &stats.Abertas, &stats.EmAnalise, &stats.Concluidas, &stats.Recusadas)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	if err := scanRequestInto(row, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func scanRequestInto(row pgx.Row, req *Request, extra ...any) error {
	dest := []any{
		&req.ID, &req.Protocol, &req.BenefitType, &req.Status, &req.Details,
		&req.RejectionReason, &req.ClosingMessage, &req.ApprovedValue,
		&req.PDFURL, &req.PDFFileName, &req.UserID, &req.ReviewedBy,
		&req.ReviewedAt, &req.ClosedAt, &req.CreatedAt, &req.UpdatedAt,
		&req.AccountID, &req.ConversationID,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(requestColumns, ",")
	for i, col := range cols {
		cols[i] = " " + alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ",")
}
