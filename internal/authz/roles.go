package authz

import "strings"

// Role identifica o papel único atribuído a um usuário.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleGestor      Role = "gestor"
	RoleAgenteDP    Role = "agente_dp"
	RoleColaborador Role = "colaborador"
)

// AllRoles é o conjunto fechado de papéis aceitos pelo sistema.
var AllRoles = []Role{RoleAdmin, RoleGestor, RoleAgenteDP, RoleColaborador}

// StaffRoles são os papéis com acesso ao painel de gestão. Um usuário com
// papel de staff nunca aparece nas listagens de colaboradores: os dois
// conjuntos particionam a base de usuários.
var StaffRoles = []Role{RoleAdmin, RoleGestor, RoleAgenteDP}

var validRoles = map[Role]struct{}{
	RoleAdmin:       {},
	RoleGestor:      {},
	RoleAgenteDP:    {},
	RoleColaborador: {},
}

// ParseRole normaliza e valida o papel informado.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	_, ok := validRoles[role]
	return role, ok
}

// IsStaff indica se o papel dá acesso ao painel de gestão.
func IsStaff(role Role) bool {
	for _, staff := range StaffRoles {
		if role == staff {
			return true
		}
	}
	return false
}

// IsReviewer indica se o papel autoriza análise e encerramento de
// solicitações. Hoje coincide com o conjunto de staff.
func IsReviewer(role Role) bool {
	return IsStaff(role)
}
