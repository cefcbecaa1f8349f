package scraper

import (
	"errors"

	"bot-alertas/internal/models"
)

// ErrNoListings indica que a página não contém nenhum contêiner de anúncio
var ErrNoListings = errors.New("nenhum anúncio encontrado na página")

// ParseOptions controla campos opcionais da extração
type ParseOptions struct {
	// WithBattery liga a extração da bateria (só quando o alerta filtra por ela)
	WithBattery bool
}

// Parser define a interface para extratores de anúncios de diferentes sites.
// As heurísticas de marcação de cada site ficam isoladas atrás dela.
type Parser interface {
	CanHandle(url string) bool
	// ReadySelector é o marcador que o renderizador deve aguardar antes de capturar o HTML
	ReadySelector() string
	Parse(html string, opts ParseOptions) ([]models.Listing, error)
	// ResolveName extrai um nome legível do aparelho monitorado
	ResolveName(html string) string
}

// Registry mantém um registro de todos os parsers disponíveis
type Registry struct {
	parsers []Parser
}

// NewRegistry cria um novo registro de parsers
func NewRegistry(parsers ...Parser) *Registry {
	if len(parsers) == 0 {
		parsers = []Parser{NewSwappaParser()}
	}
	return &Registry{parsers: parsers}
}

// FindParser encontra o parser apropriado para uma URL
func (r *Registry) FindParser(url string) Parser {
	for _, p := range r.parsers {
		if p.CanHandle(url) {
			return p
		}
	}
	return nil
}
