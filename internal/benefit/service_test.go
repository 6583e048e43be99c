package benefit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/enzononato/benefit-hub-pro/internal/auditlog"
	"github.com/enzononato/benefit-hub-pro/internal/notify"
	"github.com/enzononato/benefit-hub-pro/internal/profile"
	"github.com/enzononato/benefit-hub-pro/internal/storage"
)

type stubStore struct {
	requests map[uuid.UUID]*Request

	// simula uma leitura desatualizada: quando definido, Get devolve
	// essa fotografia em vez do estado corrente.
	getOverride *Request

	claimCalls  int
	closeCalls  int
	closeStatus string
	closeAction string
	closeInput  CloseInput
}

func newStubStore(requests ...*Request) *stubStore {
	store := &stubStore{requests: make(map[uuid.UUID]*Request)}
	for _, req := range requests {
		store.requests[req.ID] = req
	}
	return store
}

func (s *stubStore) Create(_ context.Context, input CreateInput, protocol string) (*Request, error) {
	req := &Request{
		ID:          uuid.New(),
		Protocol:    protocol,
		BenefitType: input.BenefitType,
		Status:      StatusAberta,
		UserID:      input.UserID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if input.Details != "" {
		req.Details = &input.Details
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (*Request, error) {
	if s.getOverride != nil && s.getOverride.ID == id {
		clone := *s.getOverride
		return &clone, nil
	}
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *stubStore) ListAll(_ context.Context) ([]ListItem, error) {
	items := make([]ListItem, 0, len(s.requests))
	for _, req := range s.requests {
		items = append(items, ListItem{Request: *req})
	}
	return items, nil
}

func (s *stubStore) ListByUser(_ context.Context, userID uuid.UUID) ([]Request, error) {
	var out []Request
	for _, req := range s.requests {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *stubStore) ClaimReview(_ context.Context, id, reviewerID uuid.UUID, now time.Time) (*Request, error) {
	s.claimCalls++
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if IsTerminal(req.Status) {
		return nil, ErrTerminal
	}
	if req.Status != StatusAberta || req.ReviewedBy != nil {
		return nil, ErrAlreadyClaimed
	}
	req.Status = StatusEmAnalise
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now
	req.UpdatedAt = now
	clone := *req
	return &clone, nil
}

func (s *stubStore) Close(_ context.Context, id uuid.UUID, finalStatus, auditAction string, input CloseInput, now time.Time) (*Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	// atualização condicional ao status, como no repositório real
	if IsTerminal(req.Status) {
		return nil, ErrTerminal
	}
	if req.Status != StatusEmAnalise {
		return nil, ErrNotUnderReview
	}

	s.closeCalls++
	s.closeStatus = finalStatus
	s.closeAction = auditAction
	s.closeInput = input

	req.Status = finalStatus
	req.ClosedAt = &now
	req.UpdatedAt = now
	req.ClosingMessage = &input.ClosingMessage
	if input.RejectionReason != "" {
		req.RejectionReason = &input.RejectionReason
	} else {
		req.RejectionReason = nil
	}
	if input.PDFURL != "" {
		req.PDFURL = &input.PDFURL
	}
	clone := *req
	return &clone, nil
}

func (s *stubStore) AttachPDF(_ context.Context, id uuid.UUID, pdfURL, fileName string, now time.Time) (*Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if IsTerminal(req.Status) {
		return nil, ErrTerminal
	}
	req.PDFURL = &pdfURL
	req.PDFFileName = &fileName
	req.UpdatedAt = now
	clone := *req
	return &clone, nil
}

func (s *stubStore) Trail(_ context.Context, id uuid.UUID) ([]auditlog.Entry, error) {
	return nil, nil
}

func (s *stubStore) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{}
	for _, req := range s.requests {
		stats.Total++
		switch req.Status {
		case StatusAberta:
			stats.Abertas++
		case StatusEmAnalise:
			stats.EmAnalise++
		case StatusConcluida:
			stats.Concluidas++
		case StatusRecusada:
			stats.Recusadas++
		}
	}
	return stats, nil
}

type stubProfiles struct {
	profiles map[uuid.UUID]*profile.Profile
	err      error
}

func (s *stubProfiles) GetByUserID(_ context.Context, userID uuid.UUID) (*profile.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	prof, ok := s.profiles[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return prof, nil
}

type stubUploader struct {
	keys []string
	err  error
}

func (s *stubUploader) Upload(_ context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.keys = append(s.keys, input.Key)
	return &storage.UploadResult{URL: "https://cdn.example.com/" + input.Key}, nil
}

type stubDispatcher struct {
	closures []notify.Closure
}

func (s *stubDispatcher) Dispatch(_ context.Context, closure notify.Closure) error {
	s.closures = append(s.closures, closure)
	return nil
}

func stringPtr(v string) *string { return &v }

func newTestService(store *stubStore, profiles *stubProfiles, uploader *stubUploader, dispatcher *stubDispatcher) *Service {
	if profiles == nil {
		profiles = &stubProfiles{profiles: map[uuid.UUID]*profile.Profile{}}
	}
	if uploader == nil {
		uploader = &stubUploader{}
	}
	if dispatcher == nil {
		dispatcher = &stubDispatcher{}
	}
	return NewService(store, profiles, uploader, dispatcher, zerolog.Nop())
}

func underReviewRequest(userID uuid.UUID) *Request {
	reviewer := uuid.New()
	now := time.Now().UTC()
	return &Request{
		ID:          uuid.New(),
		Protocol:    "CNV-20260301-ABC123",
		BenefitType: TypeFarmacia,
		Status:      StatusEmAnalise,
		UserID:      userID,
		ReviewedBy:  &reviewer,
		ReviewedAt:  &now,
		CreatedAt:   now.Add(-time.Hour),
		UpdatedAt:   now,
	}
}

func TestService_Create_RejectsUnknownType(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{UserID: uuid.New(), BenefitType: "consultoria"})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("esperava ErrInvalidType, obteve %v", err)
	}
	if len(store.requests) != 0 {
		t.Fatalf("nada deveria ter sido persistido")
	}
}

func TestService_Create_GeneratesProtocol(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, nil, nil, nil)

	req, err := svc.Create(context.Background(), CreateInput{UserID: uuid.New(), BenefitType: TypeFarmacia})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if !strings.HasPrefix(req.Protocol, "CNV-") {
		t.Fatalf("protocolo inesperado: %s", req.Protocol)
	}
	if req.Status != StatusAberta {
		t.Fatalf("solicitação deveria nascer aberta, nasceu %s", req.Status)
	}
}

func TestService_StartReview_OnlyFromOpen(t *testing.T) {
	open := &Request{ID: uuid.New(), Protocol: "P1", Status: StatusAberta, UserID: uuid.New()}
	store := newStubStore(open)
	svc := newTestService(store, nil, nil, nil)

	reviewer := uuid.New()
	got, err := svc.StartReview(context.Background(), open.ID, reviewer)
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if got.Status != StatusEmAnalise || got.ReviewedBy == nil || *got.ReviewedBy != reviewer {
		t.Fatalf("análise não registrou o agente")
	}

	// segunda tentativa encontra a solicitação já reivindicada
	if _, err := svc.StartReview(context.Background(), open.ID, uuid.New()); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("esperava ErrAlreadyClaimed, obteve %v", err)
	}
}

func TestService_Close_GuardsBlockPersistence(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name  string
		input CloseInput
		want  error
	}{
		{
			name:  "decisão desconhecida",
			input: CloseInput{Decision: "pendente", ClosingMessage: "ok"},
			want:  ErrInvalidStatus,
		},
		{
			name:  "aprovação sem PDF",
			input: CloseInput{Decision: DecisionApprove, ClosingMessage: "aprovado"},
			want:  ErrPDFRequired,
		},
		{
			name:  "rejeição sem motivo",
			input: CloseInput{Decision: DecisionReject, ClosingMessage: "recusado"},
			want:  ErrReasonRequired,
		},
		{
			name:  "rejeição sem mensagem",
			input: CloseInput{Decision: DecisionReject, RejectionReason: "fora da política"},
			want:  ErrMessageRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore(underReviewRequest(userID))
			dispatcher := &stubDispatcher{}
			svc := newTestService(store, nil, nil, dispatcher)

			var id uuid.UUID
			for reqID := range store.requests {
				id = reqID
			}

			_, err := svc.Close(context.Background(), id, tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("esperava %v, obteve %v", tt.want, err)
			}
			if store.closeCalls != 0 {
				t.Fatalf("guard reprovado não pode persistir")
			}
			if len(dispatcher.closures) != 0 {
				t.Fatalf("guard reprovado não pode notificar")
			}
			if store.requests[id].Status != StatusEmAnalise {
				t.Fatalf("status não pode mudar em guard reprovado")
			}
		})
	}
}

func TestService_Close_RequiresUnderReview(t *testing.T) {
	open := &Request{ID: uuid.New(), Protocol: "P1", Status: StatusAberta, UserID: uuid.New()}
	store := newStubStore(open)
	svc := newTestService(store, nil, nil, nil)

	input := CloseInput{Decision: DecisionReject, RejectionReason: "x", ClosingMessage: "y"}
	if _, err := svc.Close(context.Background(), open.ID, input); !errors.Is(err, ErrNotUnderReview) {
		t.Fatalf("esperava ErrNotUnderReview, obteve %v", err)
	}
}

func TestService_Close_TerminalIsImmutable(t *testing.T) {
	closed := &Request{ID: uuid.New(), Protocol: "P1", Status: StatusConcluida, UserID: uuid.New()}
	refused := &Request{ID: uuid.New(), Protocol: "P2", Status: StatusRecusada, UserID: uuid.New()}
	store := newStubStore(closed, refused)
	svc := newTestService(store, nil, nil, nil)

	input := CloseInput{Decision: DecisionReject, RejectionReason: "x", ClosingMessage: "y"}
	for _, id := range []uuid.UUID{closed.ID, refused.ID} {
		if _, err := svc.Close(context.Background(), id, input); !errors.Is(err, ErrTerminal) {
			t.Fatalf("estado terminal deveria ser imutável, obteve %v", err)
		}
	}
	if store.closeCalls != 0 {
		t.Fatalf("nenhuma escrita esperada")
	}
}

func TestService_Close_StaleReadCannotReopenTerminal(t *testing.T) {
	userID := uuid.New()
	req := underReviewRequest(userID)
	req.PDFURL = stringPtr("https://cdn.example.com/doc.pdf")
	store := newStubStore(req)
	dispatcher := &stubDispatcher{}
	svc := newTestService(store, nil, nil, dispatcher)

	first, err := svc.Close(context.Background(), req.ID, CloseInput{
		Decision:       DecisionApprove,
		ClosingMessage: "liberado",
	})
	if err != nil {
		t.Fatalf("primeiro encerramento falhou: %v", err)
	}

	// segundo revisor leu a solicitação antes do primeiro commit: a
	// fotografia ainda diz em_analise, mas o registro já é terminal
	stale := *req
	stale.Status = StatusEmAnalise
	stale.ClosedAt = nil
	store.getOverride = &stale

	_, err = svc.Close(context.Background(), req.ID, CloseInput{
		Decision:        DecisionReject,
		RejectionReason: "documentação",
		ClosingMessage:  "reprovado",
	})
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("encerramento tardio deveria falhar com ErrTerminal, obteve %v", err)
	}

	if store.closeCalls != 1 {
		t.Fatalf("esperava 1 escrita de encerramento, obteve %d", store.closeCalls)
	}
	if len(dispatcher.closures) != 1 {
		t.Fatalf("esperava exatamente 1 notificação, obteve %d", len(dispatcher.closures))
	}
	if got := store.requests[req.ID]; got.Status != StatusConcluida || got.ClosedAt == nil || !got.ClosedAt.Equal(*first.ClosedAt) {
		t.Fatalf("registro terminal foi sobrescrito: %+v", got)
	}
}

func TestService_AttachPDF_StaleReadCannotTouchTerminal(t *testing.T) {
	req := &Request{ID: uuid.New(), Protocol: "CNV-20260301-ABC123", Status: StatusRecusada, UserID: uuid.New()}
	store := newStubStore(req)
	stale := *req
	stale.Status = StatusEmAnalise
	store.getOverride = &stale
	uploader := &stubUploader{}
	svc := newTestService(store, nil, uploader, nil)

	_, err := svc.AttachPDF(context.Background(), req.ID, "doc.pdf", []byte("%PDF-1.4"))
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("anexo tardio deveria falhar com ErrTerminal, obteve %v", err)
	}
	if store.requests[req.ID].PDFURL != nil {
		t.Fatalf("registro terminal não pode receber documento")
	}
}

func TestService_Close_ApproveDispatchesOnce(t *testing.T) {
	userID := uuid.New()
	req := underReviewRequest(userID)
	req.PDFURL = stringPtr("https://cdn.example.com/doc.pdf")
	store := newStubStore(req)

	phone := "(11) 99900-1234"
	profiles := &stubProfiles{profiles: map[uuid.UUID]*profile.Profile{
		userID: {UserID: userID, FullName: "Maria Oliveira", Phone: &phone},
	}}
	dispatcher := &stubDispatcher{}
	svc := newTestService(store, profiles, nil, dispatcher)

	got, err := svc.Close(context.Background(), req.ID, CloseInput{
		Decision:       DecisionApprove,
		ClosingMessage: "Convênio liberado",
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if got.Status != StatusConcluida || got.ClosedAt == nil {
		t.Fatalf("encerramento não consolidou o estado final")
	}
	if store.closeAction != auditlog.ActionApproved {
		t.Fatalf("auditoria esperava %s, obteve %s", auditlog.ActionApproved, store.closeAction)
	}
	if store.closeInput.PDFURL != *req.PDFURL {
		t.Fatalf("PDF já anexado deveria satisfazer o guard")
	}
	if store.closeInput.RejectionReason != "" {
		t.Fatalf("aprovação deve limpar motivo de rejeição")
	}

	if len(dispatcher.closures) != 1 {
		t.Fatalf("esperava exatamente 1 notificação, obteve %d", len(dispatcher.closures))
	}
	closure := dispatcher.closures[0]
	if closure.Outcome != notify.OutcomeApproved {
		t.Fatalf("desfecho esperado aprovado, obteve %s", closure.Outcome)
	}
	if closure.FullName != "Maria Oliveira" || closure.Phone != phone {
		t.Fatalf("notificação não carregou o snapshot do perfil")
	}
	if closure.Protocol != req.Protocol {
		t.Fatalf("notificação sem protocolo")
	}
}

func TestService_Close_RejectCarriesReason(t *testing.T) {
	userID := uuid.New()
	req := underReviewRequest(userID)
	store := newStubStore(req)
	dispatcher := &stubDispatcher{}
	svc := newTestService(store, nil, nil, dispatcher)

	got, err := svc.Close(context.Background(), req.ID, CloseInput{
		Decision:        DecisionReject,
		RejectionReason: "fora da política",
		ClosingMessage:  "Pedido não aprovado",
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if got.Status != StatusRecusada {
		t.Fatalf("rejeição deveria encerrar em recusada, obteve %s", got.Status)
	}
	if store.closeAction != auditlog.ActionRejected {
		t.Fatalf("auditoria esperava %s", auditlog.ActionRejected)
	}
	if len(dispatcher.closures) != 1 {
		t.Fatalf("esperava 1 notificação")
	}
	closure := dispatcher.closures[0]
	if closure.Outcome != notify.OutcomeRejected || closure.Reason != "fora da política" {
		t.Fatalf("notificação de rejeição incompleta: %+v", closure)
	}
}

func TestService_Close_ProfileMissingFallsBack(t *testing.T) {
	userID := uuid.New()
	req := underReviewRequest(userID)
	store := newStubStore(req)
	dispatcher := &stubDispatcher{}
	svc := newTestService(store, &stubProfiles{err: profile.ErrNotFound}, nil, dispatcher)

	_, err := svc.Close(context.Background(), req.ID, CloseInput{
		Decision:        DecisionReject,
		RejectionReason: "x",
		ClosingMessage:  "y",
	})
	if err != nil {
		t.Fatalf("perfil ausente não pode bloquear o encerramento: %v", err)
	}
	if len(dispatcher.closures) != 1 || dispatcher.closures[0].FullName != "N/A" {
		t.Fatalf("fallback de nome deveria ser N/A")
	}
}

func TestService_AttachPDF(t *testing.T) {
	userID := uuid.New()
	req := underReviewRequest(userID)
	store := newStubStore(req)
	uploader := &stubUploader{}
	svc := newTestService(store, nil, uploader, nil)

	got, err := svc.AttachPDF(context.Background(), req.ID, "comprovante.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if got.PDFURL == nil || got.PDFFileName == nil || *got.PDFFileName != "comprovante.pdf" {
		t.Fatalf("anexo não registrado")
	}
	if len(uploader.keys) != 1 || !strings.HasPrefix(uploader.keys[0], req.Protocol+"_") {
		t.Fatalf("chave do objeto deveria derivar do protocolo: %v", uploader.keys)
	}
}

func TestService_AttachPDF_TerminalBlocked(t *testing.T) {
	req := &Request{ID: uuid.New(), Protocol: "P1", Status: StatusConcluida, UserID: uuid.New()}
	store := newStubStore(req)
	uploader := &stubUploader{}
	svc := newTestService(store, nil, uploader, nil)

	if _, err := svc.AttachPDF(context.Background(), req.ID, "a.pdf", []byte("x")); !errors.Is(err, ErrTerminal) {
		t.Fatalf("esperava ErrTerminal, obteve %v", err)
	}
	if len(uploader.keys) != 0 {
		t.Fatalf("upload não deveria acontecer em estado terminal")
	}
}

func TestService_FullLifecycle(t *testing.T) {
	store := newStubStore()
	userID := uuid.New()
	phone := "11999001234"
	profiles := &stubProfiles{profiles: map[uuid.UUID]*profile.Profile{
		userID: {UserID: userID, FullName: "João Pereira", Phone: &phone},
	}}
	uploader := &stubUploader{}
	dispatcher := &stubDispatcher{}
	svc := newTestService(store, profiles, uploader, dispatcher)

	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{UserID: userID, BenefitType: TypeOtica, Details: "óculos de grau"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reviewer := uuid.New()
	if _, err := svc.StartReview(ctx, created.ID, reviewer); err != nil {
		t.Fatalf("start review: %v", err)
	}

	if _, err := svc.AttachPDF(ctx, created.ID, "orcamento.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("attach: %v", err)
	}

	closed, err := svc.Close(ctx, created.ID, CloseInput{
		Decision:       DecisionApprove,
		ClosingMessage: "Aprovado, retire na ótica conveniada",
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != StatusConcluida {
		t.Fatalf("ciclo completo deveria terminar em concluida")
	}

	// terminal: qualquer nova transição falha
	if _, err := svc.Close(ctx, created.ID, CloseInput{Decision: DecisionReject, RejectionReason: "x", ClosingMessage: "y"}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("esperava ErrTerminal após encerramento, obteve %v", err)
	}
	if _, err := svc.StartReview(ctx, created.ID, reviewer); !errors.Is(err, ErrTerminal) {
		t.Fatalf("esperava ErrTerminal em nova análise, obteve %v", err)
	}

	if len(dispatcher.closures) != 1 {
		t.Fatalf("ciclo deveria emitir exatamente 1 notificação, emitiu %d", len(dispatcher.closures))
	}
}
