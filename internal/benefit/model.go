package benefit

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("solicitação não encontrada")
	ErrInvalidType     = errors.New("tipo de convênio inválido")
	ErrInvalidStatus   = errors.New("status inválido")
	ErrTerminal        = errors.New("solicitação já encerrada")
	ErrNotUnderReview  = errors.New("solicitação ainda não está em análise")
	ErrAlreadyClaimed  = errors.New("solicitação já está em análise por outro agente")
	ErrPDFRequired     = errors.New("upload do PDF é obrigatório antes de enviar")
	ErrReasonRequired  = errors.New("motivo da rejeição é obrigatório")
	ErrMessageRequired = errors.New("mensagem ao colaborador é obrigatória")
)

// Status de uma solicitação ao longo do ciclo de vida.
const (
	StatusAberta    = "aberta"
	StatusEmAnalise = "em_analise"
	StatusAprovada  = "aprovada" // só como decisão; persiste como concluida
	StatusRecusada  = "recusada"
	StatusConcluida = "concluida"
)

// Tipos de convênio aceitos.
const (
	TypeFarmacia     = "farmacia"
	TypeAutoescola   = "autoescola"
	TypeCombustivel  = "combustivel"
	TypeSupermercado = "supermercado"
	TypeOtica        = "otica"
	TypePapelaria    = "papelaria"
)

var validStatuses = map[string]struct{}{
	StatusAberta:    {},
	StatusEmAnalise: {},
	StatusRecusada:  {},
	StatusConcluida: {},
}

var validTypes = map[string]struct{}{
	TypeFarmacia:     {},
	TypeAutoescola:   {},
	TypeCombustivel:  {},
	TypeSupermercado: {},
	TypeOtica:        {},
	TypePapelaria:    {},
}

// IsValidStatus indica se o status é aceito.
func IsValidStatus(status string) bool {
	_, ok := validStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// IsValidType indica se o tipo de convênio é aceito.
func IsValidType(benefitType string) bool {
	_, ok := validTypes[strings.ToLower(strings.TrimSpace(benefitType))]
	return ok
}

// IsTerminal indica status imutável: nenhuma transição é permitida a
// partir de concluida ou de recusada persistida.
func IsTerminal(status string) bool {
	return status == StatusConcluida || status == StatusRecusada
}

// Request representa uma solicitação de convênio.
type Request struct {
	ID              uuid.UUID  `json:"id"`
	Protocol        string     `json:"protocol"`
	BenefitType     string     `json:"benefit_type"`
	Status          string     `json:"status"`
	Details         *string    `json:"details,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ClosingMessage  *string    `json:"closing_message,omitempty"`
	ApprovedValue   *float64   `json:"approved_value,omitempty"`
	PDFURL          *string    `json:"pdf_url,omitempty"`
	PDFFileName     *string    `json:"pdf_file_name,omitempty"`
	UserID          uuid.UUID  `json:"user_id"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AccountID       *int64     `json:"account_id,omitempty"`
	ConversationID  *int64     `json:"conversation_id,omitempty"`
}

// CreateInput encapsula campos para abertura de solicitação.
type CreateInput struct {
	UserID         uuid.UUID
	BenefitType    string
	Details        string
	AccountID      *int64
	ConversationID *int64
}

// Decision é a escolha de aprovação/rejeição feita pelo agente durante a
// análise. Fica apenas na edição em andamento, nunca é persistida por si
// só: só vira estado via Close, depois dos guards.
type Decision string

const (
	DecisionApprove Decision = StatusAprovada
	DecisionReject  Decision = StatusRecusada
)

// CloseInput encapsula o envio de encerramento de uma análise.
type CloseInput struct {
	Decision        Decision
	RejectionReason string
	ClosingMessage  string
	PDFURL          string
	PDFFileName     string
	ApprovedValue   *float64
}

// Stats agrega contagens por status para os cartões do painel.
type Stats struct {
	Total      int `json:"total"`
	Abertas    int `json:"abertas"`
	EmAnalise  int `json:"em_analise"`
	Concluidas int `json:"concluidas"`
	Recusadas  int `json:"recusadas"`
}
