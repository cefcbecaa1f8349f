package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bot-alertas/internal/message"
	"bot-alertas/internal/metrics"
	"bot-alertas/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedURL indica que nenhum parser reconhece a URL
	ErrUnsupportedURL = errors.New("URL não suportada")
	// ErrInvalidRequest indica parâmetros de criação inválidos
	ErrInvalidRequest = errors.New("parâmetros inválidos")
	// ErrWatchNotFound indica que o chat não tem alerta com o ID informado
	ErrWatchNotFound = errors.New("alerta não encontrado")
)

// CreateRequest são os parâmetros de um novo alerta
type CreateRequest struct {
	URL        string
	MaxPrice   decimal.Decimal
	Condition  string
	MinBattery int
	Frequency  string
}

func (m *Monitor) validate(req CreateRequest) (int64, error) {
	if m.registry.FindParser(req.URL) == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedURL, req.URL)
	}
	if !req.MaxPrice.IsPositive() {
		return 0, fmt.Errorf("%w: o preço máximo deve ser positivo", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Condition) == "" {
		return 0, fmt.Errorf("%w: estado vazio", ErrInvalidRequest)
	}
	if req.MinBattery < 0 || req.MinBattery > 100 {
		return 0, fmt.Errorf("%w: bateria mínima deve estar entre 0 e 100", ErrInvalidRequest)
	}
	return models.ParseCheckInterval(req.Frequency)
}

// CreateWatch valida, resolve o nome, persiste o alerta e devolve o resultado
// da primeira verificação. A notificação do resultado fica a cargo de quem
// chama, depois da confirmação de criação.
func (m *Monitor) CreateWatch(ctx context.Context, chatID string, req CreateRequest) (models.Watch, models.MatchResult, error) {
	interval, err := m.validate(req)
	if err != nil {
		return models.Watch{}, models.MatchResult{}, err
	}

	p := m.registry.FindParser(req.URL)
	html, renderErr := m.fetch(ctx, req.URL, p)

	name := models.DefaultDisplayName
	if renderErr == nil {
		if resolved := p.ResolveName(html); resolved != "" {
			name = resolved
		}
	} else {
		m.logger.Warn("initial render failed",
			zap.String("url", req.URL),
			zap.Error(renderErr))
	}

	w := models.Watch{
		ExternalID:  newExternalID(),
		OwnerChatID: chatID,
		Criteria: models.WatchCriteria{
			TargetURL:         req.URL,
			MaxPrice:          req.MaxPrice,
			DesiredCondition:  strings.TrimSpace(req.Condition),
			MinBatteryPercent: req.MinBattery,
			DisplayName:       name,
		},
		CheckIntervalSeconds: interval,
		LastCheckedAt:        m.now().Unix(),
	}
	if err := m.store.InsertWatch(ctx, &w); err != nil {
		return models.Watch{}, models.MatchResult{}, fmt.Errorf("erro ao salvar alerta: %w", err)
	}

	m.logger.Info("watch created",
		zap.Int64("watch_id", w.ID),
		zap.String("external_id", w.ExternalID),
		zap.String("chat_id", chatID),
		zap.Int64("interval_seconds", interval))

	return w, extract(p, html, renderErr, w.Criteria), nil
}

// ListWatches lista os alertas de um chat
func (m *Monitor) ListWatches(ctx context.Context, chatID string) ([]models.Watch, error) {
	return m.store.ListWatchesByOwner(ctx, chatID)
}

// CheckWatch verifica agora um alerta do chat. Não registra checkpoint: a
// agenda do alerta continua a mesma.
func (m *Monitor) CheckWatch(ctx context.Context, chatID, externalID string) (models.Watch, models.MatchResult, error) {
	watches, err := m.store.ListWatchesByOwner(ctx, chatID)
	if err != nil {
		return models.Watch{}, models.MatchResult{}, err
	}
	for _, w := range watches {
		if w.ExternalID != externalID {
			continue
		}
		res := m.evaluate(ctx, w)
		m.logger.Info("manual check finished",
			zap.Int64("watch_id", w.ID),
			zap.String("external_id", w.ExternalID),
			zap.String("outcome", res.Kind.String()))
		return w, res, nil
	}
	return models.Watch{}, models.MatchResult{}, fmt.Errorf("%w: %s", ErrWatchNotFound, externalID)
}

// DeleteWatch remove um alerta do chat. Retorna quantos registros foram removidos.
func (m *Monitor) DeleteWatch(ctx context.Context, chatID, externalID string) (int64, error) {
	n, err := m.store.DeleteWatch(ctx, externalID, chatID)
	if err != nil {
		return 0, err
	}
	m.logger.Info("watch deleted",
		zap.String("external_id", externalID),
		zap.String("chat_id", chatID),
		zap.Int64("rows", n))
	return n, nil
}

// Dispatch envia a mensagem correspondente ao resultado. Fora do modo
// interativo (reportErrors=false) só ofertas encontradas geram mensagem.
func (m *Monitor) Dispatch(ctx context.Context, w models.Watch, res models.MatchResult, reportErrors bool) (bool, error) {
	text := Compose(w, res, reportErrors)
	if text == "" {
		return false, nil
	}
	if err := m.notifier.Send(ctx, w.OwnerChatID, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("erro ao notificar chat %s: %w", w.OwnerChatID, err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return true, nil
}

// Compose escolhe o texto para um resultado; "" significa não notificar
func Compose(w models.Watch, res models.MatchResult, reportErrors bool) string {
	switch res.Kind {
	case models.Matched:
		if res.HasMatches() {
			return message.Matches(w, res.Listings)
		}
	case models.ExtractionFailed:
		if reportErrors {
			return message.Failure(w, res.Diagnostic)
		}
	case models.NoMatches:
		if reportErrors {
			return message.NoMatches(w)
		}
	case models.NoListingsOnPage:
		if reportErrors {
			return message.NoListings(w)
		}
	}
	return ""
}

func newExternalID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
