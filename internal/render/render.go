// Package render transforma uma URL no HTML renderizado por um navegador headless.
//
// Cada chamada a Render abre uma sessão de navegador própria e a encerra em
// qualquer caminho de saída (sucesso, timeout, erro ou panic).
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// DefaultWaitTimeout é o tempo máximo de espera pelo marcador de conteúdo
const DefaultWaitTimeout = 30 * time.Second

// ErrTimeout indica que o marcador de conteúdo não apareceu dentro do prazo
var ErrTimeout = errors.New("tempo esgotado aguardando o conteúdo da página")

// Options configura o navegador usado nas renderizações
type Options struct {
	BinPath     string
	Headless    bool
	NoSandbox   bool
	Stealth     bool
	WaitTimeout time.Duration
}

// Renderer renderiza páginas com go-rod
type Renderer struct {
	opts   Options
	logger *zap.Logger
}

// New cria um novo renderizador
func New(opts Options, logger *zap.Logger) *Renderer {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{opts: opts, logger: logger}
}

// Render abre a URL e retorna o HTML assim que readySelector aparecer na página
func (r *Renderer) Render(ctx context.Context, url, readySelector string) (html string, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("falha inesperada no navegador: %v", rec)
		}
		r.logger.Debug("render finished",
			zap.String("url", url),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}()

	l := r.launcher(ctx)
	wsURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("erro ao iniciar navegador: %w", err)
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	browser := rod.New().Context(ctx).ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("erro ao conectar ao navegador: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			r.logger.Debug("browser close failed", zap.Error(closeErr))
		}
	}()

	page, err := r.newPage(browser)
	if err != nil {
		return "", fmt.Errorf("erro ao abrir página: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("erro ao navegar para %s: %w", url, err)
	}

	if readySelector != "" {
		if _, err := page.Timeout(r.opts.WaitTimeout).Element(readySelector); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w (%s, %v)", ErrTimeout, readySelector, r.opts.WaitTimeout)
			}
			return "", fmt.Errorf("erro aguardando %s: %w", readySelector, err)
		}
	}

	html, err = page.HTML()
	if err != nil {
		return "", fmt.Errorf("erro ao ler HTML: %w", err)
	}
	return html, nil
}

func (r *Renderer) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(r.opts.Headless).
		NoSandbox(r.opts.NoSandbox).
		// evita falhas de memória compartilhada em containers
		Set("disable-dev-shm-usage").
		Set("disable-gpu")
	if r.opts.BinPath != "" {
		l = l.Bin(r.opts.BinPath)
	}
	return l
}

func (r *Renderer) newPage(browser *rod.Browser) (*rod.Page, error) {
	if r.opts.Stealth {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{})
}
