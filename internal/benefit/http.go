package benefit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/enzononato/benefit-hub-pro/internal/auditlog"
	httpmiddleware "github.com/enzononato/benefit-hub-pro/internal/http/middleware"
)

// maxPDFSize limita o upload de comprovantes.
const maxPDFSize = 10 << 20

type ServiceProvider interface {
	Create(ctx context.Context, input CreateInput) (*Request, error)
	List(ctx context.Context, params ListParams) ([]ListItem, int, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	History(ctx context.Context, userID uuid.UUID) ([]Request, error)
	StartReview(ctx context.Context, id, reviewerID uuid.UUID) (*Request, error)
	Close(ctx context.Context, id uuid.UUID, input CloseInput) (*Request, error)
	AttachPDF(ctx context.Context, id uuid.UUID, fileName string, content []byte) (*Request, error)
	Trail(ctx context.Context, id uuid.UUID) ([]auditlog.Entry, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Handler expõe os endpoints REST das solicitações.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registra as rotas do painel (quadro interno).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/stats", h.stats)
	r.Get("/{id}", h.get)
	r.Get("/{id}/historico", h.trail)
	r.Post("/{id}/analisar", h.startReview)
	r.Post("/{id}/encerrar", h.close)
	r.Post("/{id}/documento", h.uploadPDF)
}

// RegisterSelfRoutes registra as rotas do colaborador sobre as próprias
// solicitações.
func (h *Handler) RegisterSelfRoutes(r chi.Router) {
	r.Get("/", h.history)
	r.Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params, err := listParamsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	items, total, err := h.service.List(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar solicitações", nil)
		return
	}

	params = params.Normalize()
	writeJSON(w, http.StatusOK, map[string]any{
		"solicitacoes": items,
		"total":        total,
		"pagina":       params.Page,
		"por_pagina":   params.PageSize,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível agregar contadores", nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) trail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	entries, err := h.service.Trail(r.Context(), id)
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"historico": entries})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, err := subjectAsUUID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	requests, err := h.service.History(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar histórico", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solicitacoes": requests})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, err := subjectAsUUID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload struct {
		Tipo           string `json:"tipo"`
		Detalhes       string `json:"detalhes"`
		AccountID      *int64 `json:"account_id"`
		ConversationID *int64 `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	request, err := h.service.Create(r.Context(), CreateInput{
		UserID:         userID,
		BenefitType:    strings.ToLower(strings.TrimSpace(payload.Tipo)),
		Details:        strings.TrimSpace(payload.Detalhes),
		AccountID:      payload.AccountID,
		ConversationID: payload.ConversationID,
	})
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	reviewerID, err := subjectAsUUID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	request, err := h.service.StartReview(r.Context(), id, reviewerID)
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Decisao       string   `json:"decisao"`
		Motivo        string   `json:"motivo"`
		Mensagem      string   `json:"mensagem"`
		ValorAprovado *float64 `json:"valor_aprovado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	request, err := h.service.Close(r.Context(), id, CloseInput{
		Decision:        Decision(strings.ToLower(strings.TrimSpace(payload.Decisao))),
		RejectionReason: payload.Motivo,
		ClosingMessage:  payload.Mensagem,
		ApprovedValue:   payload.ValorAprovado,
	})
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) uploadPDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := r.ParseMultipartForm(maxPDFSize); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "multipart inválido", nil)
		return
	}

	file, header, err := r.FormFile("arquivo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "arquivo ausente", nil)
		return
	}
	defer file.Close()

	if !strings.EqualFold(path.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "VALIDATION", "apenas PDF é aceito", nil)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxPDFSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível ler o arquivo", nil)
		return
	}
	if len(content) > maxPDFSize {
		writeError(w, http.StatusBadRequest, "VALIDATION", "arquivo excede o limite de 10MB", nil)
		return
	}

	request, err := h.service.AttachPDF(r.Context(), id, header.Filename, content)
	if err != nil {
		h.handleLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrPDFRequired), errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrMessageRequired):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrTerminal), errors.Is(err, ErrNotUnderReview), errors.Is(err, ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro ao processar solicitação", nil)
	}
}

// listParamsFromQuery converte a query string nos parâmetros do pipeline.
// Datas no formato 2006-01-02.
func listParamsFromQuery(r *http.Request) (ListParams, error) {
	q := r.URL.Query()

	status := strings.ToLower(strings.TrimSpace(q.Get("status")))
	switch status {
	case "", FilterAll, "todas":
		status = FilterAll
	default:
		if !IsValidStatus(status) {
			return ListParams{}, errors.New("status inválido")
		}
	}

	benefitType := strings.ToLower(strings.TrimSpace(q.Get("tipo")))
	switch benefitType {
	case "", FilterAll, "todos":
		benefitType = FilterAll
	default:
		if !IsValidType(benefitType) {
			return ListParams{}, errors.New("tipo inválido")
		}
	}

	params := ListParams{
		Search:      q.Get("busca"),
		Status:      status,
		BenefitType: benefitType,
		Phone:       q.Get("telefone"),
		SortField:   strings.ToLower(strings.TrimSpace(q.Get("ordenar_por"))),
		SortOrder:   strings.ToLower(strings.TrimSpace(q.Get("ordem"))),
	}

	if v := q.Get("pagina"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, errors.New("pagina inválida")
		}
		params.Page = page
	}
	if v := q.Get("por_pagina"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return params, errors.New("por_pagina inválido")
		}
		params.PageSize = size
	}

	if v := q.Get("data_inicio"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, errors.New("data_inicio inválida")
		}
		params.StartDate = &t
	}
	if v := q.Get("data_fim"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, errors.New("data_fim inválida")
		}
		params.EndDate = &t
	}

	return params, nil
}

func subjectAsUUID(r *http.Request) (uuid.UUID, error) {
	subject := httpmiddleware.GetSubject(r.Context())
	return uuid.Parse(subject)
}

type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Data: nil,
		Error: &errorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
