package benefit

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/enzononato/benefit-hub-pro/internal/util"
)

// Campos de ordenação aceitos pela listagem.
const (
	SortCreatedAt   = "created_at"
	SortFullName    = "full_name"
	SortStatus      = "status"
	SortBenefitType = "benefit_type"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// FilterAll desativa um filtro de valor único.
const FilterAll = "all"

// DefaultPageSize é o tamanho de página padrão da listagem.
const DefaultPageSize = 20

// ListItem é a linha da listagem: solicitação mais os dados do perfil do
// colaborador usados em busca e ordenação.
type ListItem struct {
	Request
	FullName string `json:"full_name"`
	CPF      string `json:"cpf,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ListParams parametriza filtro, ordenação e paginação da listagem.
type ListParams struct {
	Search      string
	Status      string
	BenefitType string
	Phone       string
	StartDate   *time.Time
	EndDate     *time.Time
	SortField   string
	SortOrder   string
	Page        int
	PageSize    int
}

// Normalize aplica os defaults da listagem (mais recentes primeiro, sem
// filtros ativos, página 1 de 20).
func (p ListParams) Normalize() ListParams {
	if p.Status == "" {
		p.Status = FilterAll
	}
	if p.BenefitType == "" {
		p.BenefitType = FilterAll
	}
	if p.SortField == "" {
		p.SortField = SortCreatedAt
	}
	if p.SortOrder != OrderAsc && p.SortOrder != OrderDesc {
		p.SortOrder = OrderDesc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// ptBR ordena textos conforme colação do português brasileiro.
var ptBR = collate.New(language.BrazilianPortuguese, collate.IgnoreCase)

// Apply filtra, ordena e pagina as solicitações em memória. Função pura:
// mesmo conjunto e mesmos parâmetros produzem sempre a mesma página, e
// mudar apenas o número da página não reordena o conjunto. Devolve a
// página visível e o total de registros após o filtro (antes do corte).
func Apply(items []ListItem, params ListParams) ([]ListItem, int) {
	params = params.Normalize()

	filtered := make([]ListItem, 0, len(items))
	for _, item := range items {
		if matches(item, params) {
			filtered = append(filtered, item)
		}
	}

	sortItems(filtered, params.SortField, params.SortOrder)

	total := len(filtered)
	start := (params.Page - 1) * params.PageSize
	if start >= total {
		return []ListItem{}, total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	page := make([]ListItem, end-start)
	copy(page, filtered[start:end])
	return page, total
}

func matches(item ListItem, params ListParams) bool {
	if term := strings.TrimSpace(params.Search); term != "" && !matchesSearch(item, term) {
		return false
	}

	if params.Status != FilterAll && item.Status != params.Status {
		return false
	}
	if params.BenefitType != FilterAll && item.BenefitType != params.BenefitType {
		return false
	}

	if phone := util.OnlyDigits(params.Phone); phone != "" {
		if !strings.Contains(util.OnlyDigits(item.Phone), phone) {
			return false
		}
	}

	if params.StartDate != nil {
		start := startOfDay(*params.StartDate)
		if item.CreatedAt.Before(start) {
			return false
		}
	}
	if params.EndDate != nil {
		end := endOfDay(*params.EndDate)
		if item.CreatedAt.After(end) {
			return false
		}
	}

	return true
}

// matchesSearch implementa a busca livre: protocolo e nome por substring
// sem diferenciar maiúsculas; CPF e telefone comparados apenas por
// dígitos, ignorando pontuação armazenada.
func matchesSearch(item ListItem, term string) bool {
	lower := strings.ToLower(term)
	if strings.Contains(strings.ToLower(item.Protocol), lower) {
		return true
	}
	if strings.Contains(strings.ToLower(item.FullName), lower) {
		return true
	}

	digits := util.OnlyDigits(term)
	if digits == "" {
		return false
	}
	if strings.Contains(util.OnlyDigits(item.CPF), digits) {
		return true
	}
	return strings.Contains(util.OnlyDigits(item.Phone), digits)
}

func sortItems(items []ListItem, field, order string) {
	sort.SliceStable(items, func(i, j int) bool {
		var cmp int
		switch field {
		case SortFullName:
			cmp = ptBR.CompareString(items[i].FullName, items[j].FullName)
		case SortStatus:
			cmp = ptBR.CompareString(items[i].Status, items[j].Status)
		case SortBenefitType:
			cmp = ptBR.CompareString(items[i].BenefitType, items[j].BenefitType)
		default:
			switch {
			case items[i].CreatedAt.Before(items[j].CreatedAt):
				cmp = -1
			case items[i].CreatedAt.After(items[j].CreatedAt):
				cmp = 1
			}
		}
		if order == OrderDesc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
