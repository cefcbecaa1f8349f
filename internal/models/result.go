package models

// ResultKind identifica o desfecho de uma verificação
type ResultKind int

const (
	NoListingsOnPage ResultKind = iota // página sem nenhum anúncio utilizável
	NoMatches                          // havia anúncios, nenhum atende aos critérios
	Matched                            // ao menos um anúncio atende
	ExtractionFailed                   // falha de renderização ou leitura
)

// String retorna o rótulo usado em logs e métricas
func (k ResultKind) String() string {
	switch k {
	case NoListingsOnPage:
		return "no_listings"
	case NoMatches:
		return "no_matches"
	case Matched:
		return "matches"
	case ExtractionFailed:
		return "extraction_failed"
	default:
		return "unknown"
	}
}

// MatchResult é o resultado de uma verificação de alerta
type MatchResult struct {
	Kind       ResultKind
	Listings   []Listing // ordem da página; só em Matched
	Diagnostic string    // só em ExtractionFailed
}

// NoListingsResult indica uma página sem anúncios
func NoListingsResult() MatchResult {
	return MatchResult{Kind: NoListingsOnPage}
}

// NoMatchesResult indica que nenhum anúncio atendeu aos critérios
func NoMatchesResult() MatchResult {
	return MatchResult{Kind: NoMatches}
}

// MatchesResult guarda os anúncios encontrados; lista vazia vira NoMatches
func MatchesResult(listings []Listing) MatchResult {
	if len(listings) == 0 {
		return NoMatchesResult()
	}
	return MatchResult{Kind: Matched, Listings: listings}
}

// FailedResult guarda o diagnóstico de uma verificação que falhou
func FailedResult(diagnostic string) MatchResult {
	return MatchResult{Kind: ExtractionFailed, Diagnostic: diagnostic}
}

// HasMatches informa se há ofertas a notificar
func (r MatchResult) HasMatches() bool {
	return r.Kind == Matched && len(r.Listings) > 0
}
