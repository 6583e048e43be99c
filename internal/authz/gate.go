package authz

// Decision é o resultado da avaliação de acesso a um recurso protegido.
type Decision int

const (
	// Admit libera o acesso.
	Admit Decision = iota
	// RedirectToLogin nega o acesso por falta de autenticação.
	RedirectToLogin
	// RedirectToHome nega o acesso por papel insuficiente.
	RedirectToHome
)

// String descreve a decisão para logs.
func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Evaluate decide o acesso a partir do estado de sessão e dos papéis
// exigidos pela rota. É uma função pura: deve ser reavaliada a cada
// navegação para que trocas de papel tenham efeito sem novo login.
//
// Regras, na ordem (a primeira que casar vence):
//  1. não autenticado            -> RedirectToLogin
//  2. rota sem papéis exigidos   -> Admit
//  3. papel ausente ou fora do conjunto exigido -> RedirectToHome
//  4. caso contrário             -> Admit
func Evaluate(isAuthenticated bool, userRole Role, required []Role) Decision {
	if !isAuthenticated {
		return RedirectToLogin
	}

	if len(required) == 0 {
		return Admit
	}

	if userRole == "" {
		return RedirectToHome
	}
	for _, role := range required {
		if userRole == role {
			return Admit
		}
	}
	return RedirectToHome
}
