package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy resolve se um Origin pode acessar a API.
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string // sufixos de host com "." inicial, ex. ".empresa.com.br"
}

func newOriginPolicy(allowed []string) originPolicy {
	policy := originPolicy{exact: make(map[string]struct{}, len(allowed))}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "*."):
			policy.suffixes = append(policy.suffixes, strings.ToLower(strings.TrimPrefix(entry, "*")))
		default:
			policy.exact[entry] = struct{}{}
		}
	}
	return policy
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range p.suffixes {
		// wildcard cobre apenas subdomínios, nunca o domínio raiz
		if strings.HasSuffix(host, suffix) && host != strings.TrimPrefix(suffix, ".") {
			return true
		}
	}
	return false
}

// CORS aplica a política de origens de ALLOW_ORIGINS. Aceita
// correspondência exata (https://painel.empresa.com.br) e wildcard de
// subdomínio (*.empresa.com.br).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
