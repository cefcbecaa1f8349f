package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bot-alertas/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const (
	swappaOrigin      = "https://swappa.com"
	swappaOfferMarker = `tr[itemprop="offers"]`
)

var (
	batteryRe    = regexp.MustCompile(`\d+`)
	priceCleaner = strings.NewReplacer("$", "", ",", "")
)

// SwappaParser implementa o parser para as páginas de listagem da Swappa
type SwappaParser struct {
	origin string
}

// NewSwappaParser cria uma nova instância do parser da Swappa
func NewSwappaParser() *SwappaParser {
	return &SwappaParser{origin: swappaOrigin}
}

// CanHandle verifica se o parser pode lidar com a URL fornecida
func (s *SwappaParser) CanHandle(url string) bool {
	return strings.HasPrefix(url, "https://swappa.com/") ||
		strings.HasPrefix(url, "http://swappa.com/") ||
		strings.HasPrefix(url, "https://www.swappa.com/")
}

// ReadySelector retorna o marcador de conteúdo aguardado pelo renderizador
func (s *SwappaParser) ReadySelector() string {
	return swappaOfferMarker
}

// Parse extrai os anúncios da página. Um anúncio malformado é descartado e a
// extração continua; só uma página sem nenhum contêiner retorna ErrNoListings.
func (s *SwappaParser) Parse(html string, opts ParseOptions) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("erro ao ler HTML: %w", err)
	}

	offers := doc.Find(swappaOfferMarker)
	if offers.Length() == 0 {
		return nil, ErrNoListings
	}

	listings := make([]models.Listing, 0, offers.Length())
	offers.Each(func(i int, row *goquery.Selection) {
		if l, ok := s.parseOffer(row, opts); ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

func (s *SwappaParser) parseOffer(row *goquery.Selection, opts ParseOptions) (models.Listing, bool) {
	price, ok := parsePrice(row)
	if !ok {
		return models.Listing{}, false
	}

	marker := row.Find(`meta[itemprop="itemCondition"]`).First()
	if marker.Length() == 0 {
		return models.Listing{}, false
	}
	condition := strings.TrimSpace(marker.Parent().Text())
	if condition == "" {
		return models.Listing{}, false
	}

	l := models.Listing{
		Price:     price,
		Condition: condition,
		Seller:    findSeller(row),
		Link:      s.findLink(row),
	}

	tokens := specTokens(findTitle(row))
	l.StorageSpec = storageToken(tokens)
	l.Color = colorToken(tokens, l.StorageSpec)

	if opts.WithBattery {
		battery := parseBattery(row)
		l.BatteryPercent = &battery
	}
	return l, true
}

func parsePrice(row *goquery.Selection) (decimal.Decimal, bool) {
	tag := row.Find(`span[itemprop="price"]`).First()
	if tag.Length() == 0 {
		return decimal.Decimal{}, false
	}
	text := tag.AttrOr("content", "")
	if text == "" {
		text = tag.Text()
	}
	price, err := decimal.NewFromString(strings.TrimSpace(priceCleaner.Replace(text)))
	if err != nil || price.IsNegative() {
		return decimal.Decimal{}, false
	}
	return price, true
}

// parseBattery procura a célula de bateria; ausência ou texto sem "%" vale 0
func parseBattery(row *goquery.Selection) int {
	cell := row.Find(`td.col_featured[tabindex="0"]`).First()
	if cell.Length() == 0 {
		return 0
	}
	text := cell.Text()
	if !strings.Contains(text, "%") {
		return 0
	}
	m := batteryRe.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func findSeller(row *goquery.Selection) string {
	sellerSelectors := []string{
		`[itemprop="seller"] [itemprop="name"]`,
		`[itemprop="seller"]`,
		`.col_seller a`,
		`.col_seller`,
	}
	for _, selector := range sellerSelectors {
		if text := strings.TrimSpace(row.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return models.NotAvailable
}

func findTitle(row *goquery.Selection) string {
	if title, ok := row.Attr("title"); ok && title != "" {
		return title
	}
	return row.Find("[title]").First().AttrOr("title", "")
}

func (s *SwappaParser) findLink(row *goquery.Selection) string {
	href, ok := row.Find("a[href]").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return models.LinkNotFound
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.origin + href
}

// ResolveName extrai o nome do aparelho do cabeçalho da página
func (s *SwappaParser) ResolveName(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.DefaultDisplayName
	}

	nameSelectors := []string{
		`h1[itemprop="name"]`,
		"h1",
		`meta[property="og:title"]`,
		"title",
	}

	for _, selector := range nameSelectors {
		sel := doc.Find(selector).First()
		name := strings.TrimSpace(sel.AttrOr("content", ""))
		if name == "" {
			name = strings.TrimSpace(sel.Text())
		}
		if name != "" {
			return strings.Join(strings.Fields(name), " ")
		}
	}
	return models.DefaultDisplayName
}
