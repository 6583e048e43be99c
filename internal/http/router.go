package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/enzononato/benefit-hub-pro/internal/auditlog"
	"github.com/enzononato/benefit-hub-pro/internal/authz"
	"github.com/enzononato/benefit-hub-pro/internal/benefit"
	"github.com/enzononato/benefit-hub-pro/internal/config"
	httpmiddleware "github.com/enzononato/benefit-hub-pro/internal/http/middleware"
	"github.com/enzononato/benefit-hub-pro/internal/notify"
	"github.com/enzononato/benefit-hub-pro/internal/profile"
	"github.com/enzononato/benefit-hub-pro/internal/repo"
	"github.com/enzononato/benefit-hub-pro/internal/service"
	"github.com/enzononato/benefit-hub-pro/internal/storage"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	users         *service.UserService
	storage       storage.Uploader
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	var uploader storage.Uploader = storage.NoopUploader{Logger: log.With().Str("component", "storage").Logger()}
	switch cfg.Storage.Provider {
	case "", "noop":
		// mantém uploader padrão
	case "s3", "r2", "cloudflare-r2":
		s3Cfg := storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		}
		s3Uploader, err := storage.NewS3Uploader(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		uploader = s3Uploader
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		users:         service.NewUserService(repo.New(pool)),
		storage:       uploader,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	auditRepo := auditlog.NewRepository(pool)
	benefitRepo := benefit.NewRepository(pool, auditRepo)
	profileRepo := profile.NewRepository(pool)

	notifyLogger := log.With().Str("component", "notify").Logger()
	dispatcher := notify.NewAsync(notify.NewWebhookDispatcher(cfg.WebhookURL), notifyLogger)

	benefitLogger := log.With().Str("component", "benefit").Logger()
	benefitService := benefit.NewService(benefitRepo, profileRepo, uploader, dispatcher, benefitLogger)
	benefitHandler := benefit.NewHandler(benefitService)
	profileHandler := profile.NewHandler(profileRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)

		private.Group(func(staff chi.Router) {
			staff.Use(httpmiddleware.RequireRoles(authz.StaffRoles...))
			staff.Route("/solicitacoes", func(s chi.Router) {
				benefit.Mount(s, benefitHandler)
			})
			staff.Route("/colaboradores", func(c chi.Router) {
				profileHandler.RegisterRoutes(c)
			})
			staff.Route("/unidades", func(u chi.Router) {
				profileHandler.RegisterUnitRoutes(u)
			})
		})

		private.Group(func(self chi.Router) {
			self.Use(httpmiddleware.RequireRoles(authz.RoleColaborador))
			self.Route("/minhas-solicitacoes", func(s chi.Router) {
				benefit.MountSelf(s, benefitHandler)
			})
			self.Route("/meu-perfil", func(p chi.Router) {
				profileHandler.RegisterSelfRoutes(p)
			})
		})

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireRoles(authz.RoleAdmin))
			admin.Route("/usuarios", func(u chi.Router) {
				u.Get("/", h.ListUsers)
				u.Post("/", h.CreateUser)
				u.Patch("/{id}/papel", h.ChangeUserRole)
				u.Patch("/{id}/senha", h.ChangeUserPassword)
				u.Delete("/{id}", h.DeleteUser)
			})
		})
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Login autentica contas do painel.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Refresh rotaciona token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		return
	}

	h.writeLoginSuccess(w, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := getRefreshFromRequest(r); err == nil {
		_ = h.authService.Logout(r.Context(), token)
	}

	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna informações do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	me, err := h.authService.GetMe(r.Context(), subject)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": me})
}

// ListUsers lista contas internas do painel.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar usuários", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"usuarios": users})
}

// CreateUser cria conta interna.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome  string `json:"nome"`
		Email string `json:"email"`
		Papel string `json:"papel"`
		Senha string `json:"senha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	user, err := h.users.CreateUser(r.Context(), payload.Nome, payload.Email, payload.Papel, payload.Senha)
	if err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

// ChangeUserRole troca o papel de uma conta interna.
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Papel string `json:"papel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := h.users.ChangeRole(r.Context(), id, payload.Papel); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChangeUserPassword substitui a senha de uma conta interna.
func (h *Handler) ChangeUserPassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Senha string `json:"senha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, payload.Senha); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteUser remove conta interna e vínculos.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível remover usuário", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch err {
	case service.ErrInvalidCredentials:
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case service.ErrAccountDisabled:
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao autenticar", nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Profile,
	})
}

func (h *Handler) subjectUUID(r *http.Request) (uuid.UUID, error) {
	subjectStr := httpmiddleware.GetSubject(r.Context())
	if strings.TrimSpace(subjectStr) == "" {
		return uuid.Nil, errors.New("subject ausente")
	}
	return uuid.Parse(subjectStr)
}

const refreshCookieName = "refresh_token"

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
