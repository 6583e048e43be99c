package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/enzononato/benefit-hub-pro/internal/auth"
	"github.com/enzononato/benefit-hub-pro/internal/authz"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyRole    contextKey = "role"
)

// Auth valida JWT de acesso e injeta as claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeGateError(w, authz.RedirectToLogin)
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeGateError(w, authz.RedirectToLogin)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyRole, authz.Role(claims.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera o subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetRole recupera o papel do contexto.
func GetRole(ctx context.Context) authz.Role {
	val, _ := ctx.Value(ContextKeyRole).(authz.Role)
	return val
}

// RequireRoles aplica a decisão do gate de autorização para a lista de
// papéis aceitos pela rota. Deve ser encadeado após Auth.
func RequireRoles(required ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Auth já validou o token; papel vazio cai na regra de
			// papel insuficiente do gate, não na de sessão ausente.
			role := GetRole(r.Context())
			decision := authz.Evaluate(true, role, required)
			if decision != authz.Admit {
				writeGateError(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeGateError traduz a decisão do gate no envelope de erro HTTP. O
// destino do redirecionamento vai em details para o cliente aplicar.
func writeGateError(w http.ResponseWriter, decision authz.Decision) {
	status := http.StatusForbidden
	code := "FORBIDDEN"
	message := "acesso negado para o papel atual"
	redirect := "/"

	if decision == authz.RedirectToLogin {
		status = http.StatusUnauthorized
		code = "AUTH"
		message = "autenticação necessária"
		redirect = "/login"
	}

	writeEnvelopeError(w, status, code, message, map[string]any{"redirect": redirect})
}

// writeEnvelopeError escreve o envelope {data, error} usado em todas as
// respostas de erro emitidas pelos middlewares.
func writeEnvelopeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":  nil,
		"error": body,
	})
}
