package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDisplayName é usado quando o nome do aparelho não pôde ser resolvido na criação
const DefaultDisplayName = "Dispositivo sem nome"

// MaxCheckIntervalSeconds é o maior intervalo aceito (365 dias)
const MaxCheckIntervalSeconds int64 = 365 * 86400

// ErrInvalidInterval indica uma frequência de verificação inválida
var ErrInvalidInterval = errors.New("frequência inválida")

// WatchCriteria contém os critérios de um alerta. Imutável após a criação.
type WatchCriteria struct {
	TargetURL         string
	MaxPrice          decimal.Decimal // limite superior exclusivo
	DesiredCondition  string
	MinBatteryPercent int // 0 = bateria não é critério
	DisplayName       string
}

// BatteryRequested informa se a bateria deve ser extraída e filtrada
func (c WatchCriteria) BatteryRequested() bool {
	return c.MinBatteryPercent > 0
}

// Watch representa um alerta persistido pertencente a um chat
type Watch struct {
	ID                   int64
	ExternalID           string
	OwnerChatID          string
	Criteria             WatchCriteria
	CheckIntervalSeconds int64
	LastCheckedAt        int64 // segundos desde epoch
}

// IsDue informa se o intervalo do alerta já passou em relação a now
func (w Watch) IsDue(now int64) bool {
	return now-w.LastCheckedAt > w.CheckIntervalSeconds
}

// Interval retorna o intervalo de verificação como time.Duration
func (w Watch) Interval() time.Duration {
	return time.Duration(w.CheckIntervalSeconds) * time.Second
}

// Name retorna o nome de exibição ou o placeholder
func (w Watch) Name() string {
	if strings.TrimSpace(w.Criteria.DisplayName) == "" {
		return DefaultDisplayName
	}
	return w.Criteria.DisplayName
}

// ParseCheckInterval converte a frequência informada pelo usuário em segundos.
// Aceita durações ("45m", "2h", "1h30m", "90s"), dias ("1d") e um inteiro
// puro, que significa horas.
func ParseCheckInterval(frequency string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(frequency))
	if s == "" {
		return 0, fmt.Errorf("%w: vazia", ErrInvalidInterval)
	}

	if hours, err := strconv.ParseInt(s, 10, 64); err == nil {
		if hours <= 0 || hours > MaxCheckIntervalSeconds/3600 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, frequency)
		}
		return hours * 3600, nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseInt(strings.TrimSuffix(s, "d"), 10, 64)
		if err != nil || days <= 0 || days > MaxCheckIntervalSeconds/86400 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, frequency)
		}
		return days * 86400, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, frequency)
	}
	seconds := int64(d / time.Second)
	if seconds <= 0 || seconds > MaxCheckIntervalSeconds || d%time.Second != 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, frequency)
	}
	return seconds, nil
}

// FormatInterval devolve uma representação curta do intervalo (ex: "45m", "2h")
func FormatInterval(seconds int64) string {
	switch {
	case seconds%86400 == 0:
		return fmt.Sprintf("%dd", seconds/86400)
	case seconds%3600 == 0:
		return fmt.Sprintf("%dh", seconds/3600)
	case seconds%60 == 0:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return (time.Duration(seconds) * time.Second).String()
	}
}
