package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/enzononato/benefit-hub-pro/internal/authz"
	httpmiddleware "github.com/enzononato/benefit-hub-pro/internal/http/middleware"
	"github.com/enzononato/benefit-hub-pro/internal/util"
)

type directory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ListColaboradores(ctx context.Context, staffRoles []string) ([]Profile, error)
	Upsert(ctx context.Context, input UpsertInput) (*Profile, error)
	ListUnits(ctx context.Context) ([]Unit, error)
	CreateUnit(ctx context.Context, name string) (*Unit, error)
}

// Handler expõe endpoints de perfis e unidades.
type Handler struct {
	repo directory
}

func NewHandler(repo directory) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registra as rotas de gestão de pessoas (quadro interno).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listColaboradores)
	r.Get("/{userID}", h.getColaborador)
	r.Put("/{userID}", h.upsertColaborador)
}

// RegisterUnitRoutes registra as rotas de unidades.
func (h *Handler) RegisterUnitRoutes(r chi.Router) {
	r.Get("/", h.listUnits)
	r.Post("/", h.createUnit)
}

// RegisterSelfRoutes registra a visão do próprio perfil.
func (h *Handler) RegisterSelfRoutes(r chi.Router) {
	r.Get("/", h.getSelf)
}

func (h *Handler) listColaboradores(w http.ResponseWriter, r *http.Request) {
	roles := make([]string, 0, len(authz.StaffRoles))
	for _, role := range authz.StaffRoles {
		roles = append(roles, string(role))
	}

	profiles, err := h.repo.ListColaboradores(r.Context(), roles)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar colaboradores", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"colaboradores": profiles})
}

func (h *Handler) getColaborador(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	prof, err := h.repo.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *Handler) upsertColaborador(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		NomeCompleto string  `json:"nome_completo"`
		Email        *string `json:"email"`
		CPF          *string `json:"cpf"`
		Telefone     *string `json:"telefone"`
		UnidadeID    *string `json:"unidade_id"`
		Departamento *string `json:"departamento"`
		Cargo        *string `json:"cargo"`
		Nascimento   *string `json:"nascimento"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.NomeCompleto) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "nome_completo é obrigatório", nil)
		return
	}

	input := UpsertInput{
		UserID:     userID,
		FullName:   payload.NomeCompleto,
		Email:      payload.Email,
		Phone:      payload.Telefone,
		Department: payload.Departamento,
		Position:   payload.Cargo,
	}

	if payload.CPF != nil {
		formatted := util.FormatCPF(*payload.CPF)
		input.CPF = &formatted
	}
	if payload.UnidadeID != nil && *payload.UnidadeID != "" {
		unitID, err := uuid.Parse(*payload.UnidadeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "unidade_id inválido", nil)
			return
		}
		input.UnitID = &unitID
	}
	if payload.Nascimento != nil && *payload.Nascimento != "" {
		birthday, err := time.Parse("2006-01-02", *payload.Nascimento)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "nascimento inválido", nil)
			return
		}
		input.Birthday = &birthday
	}

	prof, err := h.repo.Upsert(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível salvar perfil", nil)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *Handler) getSelf(w http.ResponseWriter, r *http.Request) {
	subject := httpmiddleware.GetSubject(r.Context())
	userID, err := uuid.Parse(subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	prof, err := h.repo.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.repo.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar unidades", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unidades": units})
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if strings.TrimSpace(payload.Nome) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "nome é obrigatório", nil)
		return
	}

	unit, err := h.repo.CreateUnit(r.Context(), payload.Nome)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar unidade", nil)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
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
