package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Recover intercepta panics e devolve o envelope de erro interno, sem
// vazar detalhes ao cliente. O stack vai para o log.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recuperado")
				writeEnvelopeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
