package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"bot-alertas/internal/models"
)

var storageRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(GB|TB)`)

// specTokens separa a parte de especificações do título ("Modelo - 128GB, Preto, Unlocked")
func specTokens(title string) []string {
	parts := strings.SplitN(title, " - ", 2)
	if len(parts) < 2 {
		return nil
	}
	var tokens []string
	for _, t := range strings.Split(parts[1], ",") {
		tokens = append(tokens, strings.TrimSpace(t))
	}
	return tokens
}

// storageToken escolhe o token com a maior capacidade (TB normalizado para GB)
// e devolve o texto original do token.
func storageToken(tokens []string) string {
	best := models.NotAvailable
	bestGB := -1.0
	for _, t := range tokens {
		m := storageRe.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if strings.EqualFold(m[2], "TB") {
			n *= 1024
		}
		if n > bestGB {
			bestGB = n
			best = t
		}
	}
	return best
}

// colorToken usa o segundo token da lista original, a menos que seja o
// armazenamento já resolvido ou uma marca de operadora.
func colorToken(tokens []string, storage string) string {
	if len(tokens) < 2 {
		return models.NotAvailable
	}
	c := tokens[1]
	if c == "" || c == storage || strings.Contains(strings.ToLower(c), "unlocked") {
		return models.NotAvailable
	}
	return c
}
