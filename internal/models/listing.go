package models

import "github.com/shopspring/decimal"

const (
	// NotAvailable é o valor padrão dos campos de exibição não resolvidos
	NotAvailable = "N/A"
	// LinkNotFound é emitido quando o anúncio não tem âncora com href
	LinkNotFound = "Link não encontrado"
)

// Listing é uma oferta normalizada extraída de uma página. Nunca é persistida.
type Listing struct {
	Price          decimal.Decimal
	Condition      string
	BatteryPercent *int // presente apenas quando a bateria foi solicitada
	StorageSpec    string
	Color          string
	Seller         string
	Link           string
}

// Battery retorna a bateria extraída ou 0 quando ausente
func (l Listing) Battery() int {
	if l.BatteryPercent == nil {
		return 0
	}
	return *l.BatteryPercent
}
