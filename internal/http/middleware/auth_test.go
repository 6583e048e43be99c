package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/enzononato/benefit-hub-pro/internal/authz"
)

func newGateRouter(required ...authz.Role) http.Handler {
	r := chi.NewRouter()
	r.With(RequireRoles(required...)).Get("/recurso", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func requestWithRole(t *testing.T, role authz.Role) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/recurso", nil)
	ctx := context.WithValue(req.Context(), ContextKeySubject, "abc")
	ctx = context.WithValue(ctx, ContextKeyRole, role)
	return req.WithContext(ctx)
}

func decodeGateError(t *testing.T, rec *httptest.ResponseRecorder) (code string, redirect string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Redirect string `json:"redirect"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("resposta inválida: %v", err)
	}
	return envelope.Error.Code, envelope.Error.Details.Redirect
}

func TestRequireRoles_AdmitsListedRole(t *testing.T) {
	router := newGateRouter(authz.RoleAdmin, authz.RoleGestor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestWithRole(t, authz.RoleGestor))

	if rec.Code != http.StatusOK {
		t.Fatalf("esperava 200, obteve %d", rec.Code)
	}
}

func TestRequireRoles_RejectsOtherRole(t *testing.T) {
	router := newGateRouter(authz.RoleAdmin)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestWithRole(t, authz.RoleColaborador))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("esperava 403, obteve %d", rec.Code)
	}
	code, redirect := decodeGateError(t, rec)
	if code != "FORBIDDEN" || redirect != "/" {
		t.Fatalf("esperava FORBIDDEN com redirect /, obteve %s %s", code, redirect)
	}
}

func TestRequireRoles_EmptyRoleGoesHomeNotLogin(t *testing.T) {
	// sessão válida sem papel atribuído: papel insuficiente, não falta
	// de autenticação
	router := newGateRouter(authz.RoleAdmin)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestWithRole(t, authz.Role("")))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("esperava 403, obteve %d", rec.Code)
	}
	code, redirect := decodeGateError(t, rec)
	if code != "FORBIDDEN" || redirect != "/" {
		t.Fatalf("esperava FORBIDDEN com redirect /, obteve %s %s", code, redirect)
	}
}
