package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/enzononato/benefit-hub-pro/internal/auth"
	"github.com/enzononato/benefit-hub-pro/internal/repo"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r *repo.Queries, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Role          string
	Profile       *UserProfile
	RefreshHash   string
	RefreshExpiry time.Time
}

// UserProfile descreve a conta autenticada para a sessão do painel.
type UserProfile struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login autentica usuários do painel.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

func (s *AuthService) issueSession(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       user.ID,
		Role:          user.Role,
		Profile:       profileFromUsuario(user),
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

// Refresh troca refresh token por novos tokens (rotação com revogação do
// anterior).
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || time.Now().UTC().After(record.Expiracao) {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.Subject)
	if err != nil {
		return nil, err
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	// Revoga token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	redisKey := auth.RefreshRedisKey(hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe retorna o perfil da conta autenticada.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (*UserProfile, error) {
	user, err := s.repo.GetUsuarioByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	return profileFromUsuario(user), nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		Subject:   subject,
		TokenHash: hash,
		Expiracao: expires,
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), "active", time.Until(expires)).Err()
}

func profileFromUsuario(user repo.Usuario) *UserProfile {
	return &UserProfile{
		ID:    user.ID.String(),
		Nome:  user.Nome,
		Email: user.Email,
		Role:  user.Role,
	}
}
