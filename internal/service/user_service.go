package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/enzononato/benefit-hub-pro/internal/auth"
	"github.com/enzononato/benefit-hub-pro/internal/authz"
	"github.com/enzononato/benefit-hub-pro/internal/repo"
	"github.com/enzononato/benefit-hub-pro/internal/util"
)

// ErrInvalidRole indica papel desconhecido ou fora do quadro interno.
var ErrInvalidRole = errors.New("papel inválido")

// UserService centraliza os casos de uso administrativos de contas do
// painel (exclusivos do papel admin).
type UserService struct {
	repo *repo.Queries
}

// NewUserService cria nova instância do serviço.
func NewUserService(r *repo.Queries) *UserService {
	return &UserService{repo: r}
}

// ListUsers retorna as contas internas (admin, gestor e agente_dp).
func (s *UserService) ListUsers(ctx context.Context) ([]repo.Usuario, error) {
	roles := make([]string, 0, len(authz.StaffRoles))
	for _, role := range authz.StaffRoles {
		roles = append(roles, string(role))
	}
	return s.repo.ListUsuariosByRoles(ctx, roles)
}

// CreateUser cria conta interna ativa com papel do quadro (nunca
// colaborador: contas de colaborador nascem junto do perfil).
func (s *UserService) CreateUser(ctx context.Context, nome, email, role, password string) (*repo.Usuario, error) {
	nome = strings.TrimSpace(nome)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := util.RequireString(nome, "nome"); err != nil {
		return nil, err
	}
	if err := util.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(password); err != nil {
		return nil, err
	}

	parsed, ok := authz.ParseRole(role)
	if !ok || !authz.IsStaff(parsed) {
		return nil, ErrInvalidRole
	}

	hash, err := auth.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUsuario(ctx, nome, email, hash, string(parsed))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangeRole troca o papel de uma conta interna.
func (s *UserService) ChangeRole(ctx context.Context, id uuid.UUID, role string) error {
	parsed, ok := authz.ParseRole(role)
	if !ok || !authz.IsStaff(parsed) {
		return ErrInvalidRole
	}
	return s.repo.SetRole(ctx, id, string(parsed))
}

// ChangePassword substitui a senha de uma conta.
func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, password string) error {
	if err := util.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	return s.repo.UpdateSenha(ctx, id, hash)
}

// DeleteUser remove definitivamente a conta e seus vínculos.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteUsuario(ctx, id)
}
