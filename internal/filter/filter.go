// Package filter aplica os critérios de um alerta aos anúncios extraídos.
package filter

import (
	"strings"

	"bot-alertas/internal/models"
)

// Matches informa se um anúncio satisfaz os critérios
func Matches(l models.Listing, c models.WatchCriteria) bool {
	if !l.Price.LessThan(c.MaxPrice) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(l.Condition), strings.TrimSpace(c.DesiredCondition)) {
		return false
	}
	if c.BatteryRequested() && l.Battery() < c.MinBatteryPercent {
		return false
	}
	return true
}

// Apply filtra os anúncios mantendo a ordem da página. Uma lista vazia de
// anúncios resulta em NoListingsOnPage; anúncios sem nenhuma correspondência
// resultam em NoMatches.
func Apply(listings []models.Listing, c models.WatchCriteria) models.MatchResult {
	if len(listings) == 0 {
		return models.NoListingsResult()
	}

	var matched []models.Listing
	for _, l := range listings {
		if Matches(l, c) {
			matched = append(matched, l)
		}
	}
	return models.MatchesResult(matched)
}
