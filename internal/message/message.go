// Package message monta os textos HTML enviados ao Telegram.
//
// Só um subconjunto da marcação é usado: <b>, <a href> e <pre>. Todo texto
// vindo de páginas ou de usuários passa por EscapeHTML.
package message

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"bot-alertas/internal/models"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapa caracteres especiais do HTML
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// MaxLength é o limite do Telegram para o texto de uma mensagem, em unidades UTF-16
const MaxLength = 4096

// Length mede o texto como o Telegram mede
func Length(text string) int {
	return len(utf16.Encode([]rune(text)))
}

// Matches monta a notificação de ofertas encontradas. Ofertas que não cabem
// no limite de uma mensagem viram uma linha final com o link da página.
func Matches(w models.Watch, listings []models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🔔 Alerta Swappa: %s</b>\n", EscapeHTML(w.Name()))
	fmt.Fprintf(&b, "Encontramos %d oferta(s) abaixo de $%s em estado %s:\n\n",
		len(listings), w.Criteria.MaxPrice.StringFixed(2), EscapeHTML(w.Criteria.DesiredCondition))

	used := Length(b.String())
	shown := 0
	for i, l := range listings {
		block := listingBlock(w, l)
		need := used + Length(block)
		if rest := len(listings) - i - 1; rest > 0 {
			need += Length(moreLine(w, rest))
		}
		if need > MaxLength {
			break
		}
		b.WriteString(block)
		used += Length(block)
		shown++
	}
	if rest := len(listings) - shown; rest > 0 {
		b.WriteString(moreLine(w, rest))
	}
	return strings.TrimRight(b.String(), "\n")
}

func listingBlock(w models.Watch, l models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📱 <b>Preço: $%s</b>\n", l.Price.StringFixed(2))
	fmt.Fprintf(&b, "   - Estado: %s\n", EscapeHTML(l.Condition))
	if w.Criteria.BatteryRequested() {
		fmt.Fprintf(&b, "   - Bateria: %d%%\n", l.Battery())
	}
	fmt.Fprintf(&b, "   - Armazenamento: %s\n", EscapeHTML(l.StorageSpec))
	fmt.Fprintf(&b, "   - Cor: %s\n", EscapeHTML(l.Color))
	fmt.Fprintf(&b, "   - Vendedor: %s\n", EscapeHTML(l.Seller))
	if l.Link == models.LinkNotFound {
		fmt.Fprintf(&b, "   - %s\n\n", EscapeHTML(l.Link))
	} else {
		fmt.Fprintf(&b, "   - <a href=\"%s\">Ver anúncio</a>\n\n", EscapeHTML(l.Link))
	}
	return b.String()
}

func moreLine(w models.Watch, rest int) string {
	return fmt.Sprintf("➕ +%d outras ofertas: <a href=\"%s\">ver página</a>",
		rest, EscapeHTML(w.Criteria.TargetURL))
}

// Failure monta o diagnóstico de uma verificação que falhou
func Failure(w models.Watch, diagnostic string) string {
	return fmt.Sprintf("⚠️ <b>Erro na busca para %s:</b>\n<pre>%s</pre>",
		EscapeHTML(w.Criteria.TargetURL), EscapeHTML(diagnostic))
}

// NoListings informa que a página não tinha anúncios
func NoListings(w models.Watch) string {
	return fmt.Sprintf("📭 Nenhum anúncio encontrado na página de <b>%s</b> no momento.", EscapeHTML(w.Name()))
}

// NoMatches informa que havia anúncios, mas nenhum atendeu aos critérios
func NoMatches(w models.Watch) string {
	return fmt.Sprintf("🔎 Há anúncios para <b>%s</b>, mas nenhum atende aos critérios por enquanto.", EscapeHTML(w.Name()))
}

// Created confirma a criação de um alerta
func Created(w models.Watch) string {
	var b strings.Builder
	b.WriteString("✅ <b>Alerta configurado.</b>\n\n")
	fmt.Fprintf(&b, "🆔 <b>ID: %s</b>\n", EscapeHTML(w.ExternalID))
	fmt.Fprintf(&b, "📦 %s\n", EscapeHTML(w.Name()))
	b.WriteString(criteriaLines(w))
	fmt.Fprintf(&b, "⏱ Verificação a cada %s", models.FormatInterval(w.CheckIntervalSeconds))
	return b.String()
}

// WatchList monta a lista de alertas de um chat
func WatchList(watches []models.Watch) string {
	if len(watches) == 0 {
		return "📋 Nenhum alerta configurado no momento."
	}

	var b strings.Builder
	b.WriteString("📋 <b>Seus alertas:</b>\n\n")
	for _, w := range watches {
		fmt.Fprintf(&b, "🆔 <b>ID: %s</b>\n", EscapeHTML(w.ExternalID))
		fmt.Fprintf(&b, "📦 %s\n", EscapeHTML(w.Name()))
		b.WriteString(criteriaLines(w))
		fmt.Fprintf(&b, "⏱ A cada %s\n", models.FormatInterval(w.CheckIntervalSeconds))
		fmt.Fprintf(&b, "🔗 %s\n\n", EscapeHTML(w.Criteria.TargetURL))
	}
	return strings.TrimRight(b.String(), "\n")
}

func criteriaLines(w models.Watch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Preço máximo: $%s\n", w.Criteria.MaxPrice.StringFixed(2))
	fmt.Fprintf(&b, "🏷 Estado: %s\n", EscapeHTML(w.Criteria.DesiredCondition))
	if w.Criteria.BatteryRequested() {
		fmt.Fprintf(&b, "🔋 Bateria mínima: %d%%\n", w.Criteria.MinBatteryPercent)
	}
	return b.String()
}
