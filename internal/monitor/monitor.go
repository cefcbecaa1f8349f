package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bot-alertas/internal/claim"
	"bot-alertas/internal/filter"
	"bot-alertas/internal/logger"
	"bot-alertas/internal/metrics"
	"bot-alertas/internal/models"
	"bot-alertas/internal/scraper"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultSchedule     = "@every 1m"
	DefaultWatchTimeout = 90 * time.Second
)

// Store é o armazenamento de alertas. Cada operação é atômica por si só.
type Store interface {
	InsertWatch(ctx context.Context, w *models.Watch) error
	ListWatches(ctx context.Context) ([]models.Watch, error)
	ListWatchesByOwner(ctx context.Context, chatID string) ([]models.Watch, error)
	DeleteWatch(ctx context.Context, externalID, chatID string) (int64, error)
	UpdateLastChecked(ctx context.Context, id int64, checkedAt int64) error
}

// Renderer transforma uma URL em HTML aguardando o marcador de conteúdo
type Renderer interface {
	Render(ctx context.Context, url, readySelector string) (string, error)
}

// Notifier entrega uma mensagem HTML a um chat
type Notifier interface {
	Send(ctx context.Context, chatID string, text string) error
}

// Monitor gerencia o monitoramento periódico dos alertas
type Monitor struct {
	store        Store
	renderer     Renderer
	notifier     Notifier
	registry     *scraper.Registry
	claimer      claim.Claimer
	logger       *zap.Logger
	schedule     string
	watchTimeout time.Duration
	now          func() time.Time
}

// Option configura o Monitor
type Option func(*Monitor)

// WithClaimer troca a reserva em memória (ex: por Redis)
func WithClaimer(c claim.Claimer) Option {
	return func(m *Monitor) { m.claimer = c }
}

// WithSchedule define a expressão cron dos ticks (ex: "@every 1m")
func WithSchedule(spec string) Option {
	return func(m *Monitor) {
		if spec != "" {
			m.schedule = spec
		}
	}
}

// WithWatchTimeout limita o tempo de uma verificação individual
func WithWatchTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.watchTimeout = d
		}
	}
}

// WithClock substitui o relógio (usado em testes)
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New cria uma nova instância do monitor
func New(store Store, renderer Renderer, notifier Notifier, registry *scraper.Registry, log *zap.Logger, opts ...Option) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Monitor{
		store:        store,
		renderer:     renderer,
		notifier:     notifier,
		registry:     registry,
		claimer:      claim.NewMemoryClaimer(),
		logger:       log.Named("monitor"),
		schedule:     DefaultSchedule,
		watchTimeout: DefaultWatchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TickSummary resume um tick do agendador
type TickSummary struct {
	Total            int
	Due              int
	Skipped          int
	Checked          int
	Failed           int
	Notified         int
	CheckpointErrors int
}

// Start executa um tick imediatamente e depois segue a agenda até ctx ser cancelado
func (m *Monitor) Start(ctx context.Context) error {
	cl := logger.NewCronLogger(m.logger)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(m.schedule, func() { m.Tick(ctx) }); err != nil {
		return fmt.Errorf("agenda inválida %q: %w", m.schedule, err)
	}

	m.logger.Info("monitor started",
		zap.String("schedule", m.schedule),
		zap.Duration("watch_timeout", m.watchTimeout))

	m.Tick(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("monitor stopped")
	return nil
}

// Tick avalia, em sequência, todos os alertas vencidos
func (m *Monitor) Tick(ctx context.Context) TickSummary {
	metrics.TicksTotal.Inc()
	var summary TickSummary

	watches, err := m.store.ListWatches(ctx)
	if err != nil {
		m.logger.Error("list watches failed", zap.Error(err))
		return summary
	}
	summary.Total = len(watches)

	now := m.now().Unix()
	for _, w := range watches {
		if ctx.Err() != nil {
			break
		}
		if !w.IsDue(now) {
			continue
		}
		summary.Due++
		m.processWatch(ctx, w, now, &summary)
	}

	m.logger.Info("tick finished",
		zap.Int("watches", summary.Total),
		zap.Int("due", summary.Due),
		zap.Int("checked", summary.Checked),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("notified", summary.Notified),
		zap.Int("checkpoint_errors", summary.CheckpointErrors))
	return summary
}

func (m *Monitor) processWatch(ctx context.Context, w models.Watch, now int64, summary *TickSummary) {
	log := m.logger.With(zap.Int64("watch_id", w.ID), zap.String("external_id", w.ExternalID))

	key := claim.Key(w.ID, w.LastCheckedAt)
	claimed, err := m.claimer.Claim(ctx, key, w.Interval())
	if err != nil {
		log.Warn("claim failed, checking anyway", zap.Error(err))
		claimed = true
	}
	if !claimed {
		log.Debug("interval already claimed, skipping")
		summary.Skipped++
		return
	}

	start := time.Now()
	result := m.evaluate(ctx, w)
	metrics.DueChecksTotal.WithLabelValues(result.Kind.String()).Inc()

	if result.Kind == models.ExtractionFailed {
		summary.Failed++
		log.Warn("due-check failed",
			zap.String("diagnostic", result.Diagnostic),
			zap.Duration("duration", time.Since(start)))
	} else {
		log.Info("due-check finished",
			zap.String("outcome", result.Kind.String()),
			zap.Int("matches", len(result.Listings)),
			zap.Duration("duration", time.Since(start)))
	}

	if err := m.store.UpdateLastChecked(ctx, w.ID, now); err != nil {
		metrics.CheckpointErrorsTotal.Inc()
		summary.CheckpointErrors++
		log.Error("checkpoint failed, watch abandoned for this cycle", zap.Error(err))
		if relErr := m.claimer.Release(ctx, key); relErr != nil {
			log.Warn("claim release failed", zap.Error(relErr))
		}
		return
	}
	summary.Checked++

	sent, err := m.Dispatch(ctx, w, result, false)
	if err != nil {
		log.Warn("notification failed", zap.Error(err))
		return
	}
	if sent {
		summary.Notified++
	}
}

// evaluate renderiza a página do alerta e aplica o parser e o filtro
func (m *Monitor) evaluate(ctx context.Context, w models.Watch) models.MatchResult {
	p := m.registry.FindParser(w.Criteria.TargetURL)
	if p == nil {
		return models.FailedResult(ErrUnsupportedURL.Error())
	}
	html, err := m.fetch(ctx, w.Criteria.TargetURL, p)
	return extract(p, html, err, w.Criteria)
}

// fetch renderiza a URL respeitando o limite de tempo por alerta
func (m *Monitor) fetch(ctx context.Context, url string, p scraper.Parser) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.watchTimeout)
	defer cancel()

	start := time.Now()
	html, err := m.renderer.Render(ctx, url, p.ReadySelector())
	metrics.RenderDuration.Observe(time.Since(start).Seconds())
	return html, err
}

func extract(p scraper.Parser, html string, renderErr error, c models.WatchCriteria) models.MatchResult {
	if renderErr != nil {
		return models.FailedResult(renderErr.Error())
	}
	listings, err := p.Parse(html, scraper.ParseOptions{WithBattery: c.BatteryRequested()})
	if errors.Is(err, scraper.ErrNoListings) {
		return models.NoListingsResult()
	}
	if err != nil {
		return models.FailedResult(err.Error())
	}
	return filter.Apply(listings, c)
}
