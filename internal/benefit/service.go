package benefit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/enzononato/benefit-hub-pro/internal/auditlog"
	"github.com/enzononato/benefit-hub-pro/internal/notify"
	"github.com/enzononato/benefit-hub-pro/internal/profile"
	"github.com/enzononato/benefit-hub-pro/internal/storage"
	"github.com/enzononato/benefit-hub-pro/internal/util"
)

type requestStore interface {
	Create(ctx context.Context, input CreateInput, protocol string) (*Request, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	ListAll(ctx context.Context) ([]ListItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Request, error)
	ClaimReview(ctx context.Context, id, reviewerID uuid.UUID, now time.Time) (*Request, error)
	Close(ctx context.Context, id uuid.UUID, finalStatus, auditAction string, input CloseInput, now time.Time) (*Request, error)
	AttachPDF(ctx context.Context, id uuid.UUID, pdfURL, fileName string, now time.Time) (*Request, error)
	Trail(ctx context.Context, id uuid.UUID) ([]auditlog.Entry, error)
	Stats(ctx context.Context) (*Stats, error)
}

type profileDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)
}

// Service reúne as regras do ciclo de vida das solicitações.
type Service struct {
	store    requestStore
	profiles profileDirectory
	uploader storage.Uploader
	notifier notify.Dispatcher
	logger   zerolog.Logger
}

// NewService cria uma nova instância do serviço.
func NewService(store requestStore, profiles profileDirectory, uploader storage.Uploader, notifier notify.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{store: store, profiles: profiles, uploader: uploader, notifier: notifier, logger: logger}
}

// Create abre uma solicitação com protocolo gerado e status aberta.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Request, error) {
	if !IsValidType(input.BenefitType) {
		return nil, ErrInvalidType
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("colaborador obrigatório")
	}

	protocol := util.NewProtocol(time.Now().UTC())
	return s.store.Create(ctx, input, protocol)
}

// List aplica o pipeline de filtro/ordenação/paginação sobre o conjunto
// completo de solicitações.
func (s *Service) List(ctx context.Context, params ListParams) ([]ListItem, int, error) {
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, total := Apply(items, params)
	return page, total, nil
}

// Get recupera uma solicitação.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.store.Get(ctx, id)
}

// History devolve as solicitações de um colaborador.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]Request, error) {
	return s.store.ListByUser(ctx, userID)
}

// Stats agrega contagens por status.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// Trail devolve a trilha de auditoria de uma solicitação.
func (s *Service) Trail(ctx context.Context, id uuid.UUID) ([]auditlog.Entry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Trail(ctx, id)
}

// StartReview assume a análise de uma solicitação aberta: transição
// aberta -> em_analise com registro de quem analisou e quando.
func (s *Service) StartReview(ctx context.Context, id, reviewerID uuid.UUID) (*Request, error) {
	if reviewerID == uuid.Nil {
		return nil, fmt.Errorf("agente obrigatório")
	}
	return s.store.ClaimReview(ctx, id, reviewerID, time.Now().UTC())
}

// AttachPDF envia o documento ao storage e grava a URL pública na
// solicitação. O upload precisa concluir antes do encerramento: o guard
// de PDF do Close só enxerga documentos já persistidos aqui ou enviados
// no próprio submit.
func (s *Service) AttachPDF(ctx context.Context, id uuid.UUID, fileName string, content []byte) (*Request, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(current.Status) {
		return nil, ErrTerminal
	}

	key := fmt.Sprintf("%s_%d.pdf", current.Protocol, time.Now().UnixMilli())
	result, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:         key,
		Body:        content,
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, err
	}

	return s.store.AttachPDF(ctx, id, result.URL, fileName, time.Now().UTC())
}

// Close realiza o encerramento de uma análise: valida os guards da
// decisão rascunhada, persiste o estado final junto com a auditoria e
// dispara a notificação de desfecho. A operação é atômica: nenhum guard
// reprovado produz escrita ou efeito colateral.
func (s *Service) Close(ctx context.Context, id uuid.UUID, input CloseInput) (*Request, error) {
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return nil, ErrInvalidStatus
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(current.Status) {
		return nil, ErrTerminal
	}
	if current.Status != StatusEmAnalise {
		return nil, ErrNotUnderReview
	}

	// guards do encerramento, antes de qualquer persistência
	input.ClosingMessage = strings.TrimSpace(input.ClosingMessage)
	input.RejectionReason = strings.TrimSpace(input.RejectionReason)

	var finalStatus, auditAction string
	switch input.Decision {
	case DecisionApprove:
		if strings.TrimSpace(input.PDFURL) == "" {
			if current.PDFURL == nil || *current.PDFURL == "" {
				return nil, ErrPDFRequired
			}
			input.PDFURL = *current.PDFURL
			if current.PDFFileName != nil {
				input.PDFFileName = *current.PDFFileName
			}
		}
		input.RejectionReason = ""
		finalStatus = StatusConcluida
		auditAction = auditlog.ActionApproved
	case DecisionReject:
		if input.RejectionReason == "" {
			return nil, ErrReasonRequired
		}
		finalStatus = StatusRecusada
		auditAction = auditlog.ActionRejected
	}
	if input.ClosingMessage == "" {
		return nil, ErrMessageRequired
	}

	closed, err := s.store.Close(ctx, id, finalStatus, auditAction, input, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.dispatchClosure(ctx, closed, input)
	return closed, nil
}

// dispatchClosure emite o webhook de desfecho. Melhor esforço: falha é
// registrada no log e nunca desfaz a transição já persistida.
func (s *Service) dispatchClosure(ctx context.Context, closed *Request, input CloseInput) {
	outcome := notify.OutcomeApproved
	if input.Decision == DecisionReject {
		outcome = notify.OutcomeRejected
	}

	fullName := "N/A"
	phone := ""
	if prof, err := s.profiles.GetByUserID(ctx, closed.UserID); err == nil {
		if prof.FullName != "" {
			fullName = prof.FullName
		}
		if prof.Phone != nil {
			phone = *prof.Phone
		}
	} else {
		s.logger.Warn().Err(err).Str("protocolo", closed.Protocol).Msg("perfil indisponível para notificação")
	}

	closure := notify.Closure{
		Protocol:       closed.Protocol,
		FullName:       fullName,
		Phone:          phone,
		Outcome:        outcome,
		Reason:         input.RejectionReason,
		Message:        input.ClosingMessage,
		AccountID:      closed.AccountID,
		ConversationID: closed.ConversationID,
	}

	if err := s.notifier.Dispatch(ctx, closure); err != nil {
		s.logger.Error().Err(err).Str("protocolo", closed.Protocol).Msg("falha ao agendar notificação")
	}
}
