package benefit

import "github.com/go-chi/chi/v5"

// Mount registra as rotas de gestão das solicitações.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}

// MountSelf registra as rotas do colaborador sobre as próprias
// solicitações.
func MountSelf(r chi.Router, handler *Handler) {
	handler.RegisterSelfRoutes(r)
}
