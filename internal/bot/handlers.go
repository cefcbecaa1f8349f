package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bot-alertas/internal/message"
	"bot-alertas/internal/models"
	"bot-alertas/internal/monitor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const helpText = `🤖 <b>Bot de Alertas Swappa</b>

<b>Comandos disponíveis:</b>

<b>/remind</b> - Criar um alerta
Uso: /remind &lt;URL&gt; &lt;preço_máximo&gt; &lt;estado&gt; &lt;bateria_mínima&gt; &lt;frequência&gt;
Exemplo: /remind https://swappa.com/listings/apple-iphone-13 700 Good 90 45m
Use 0 na bateria para ignorá-la. Estados com espaço usam _ (ex: Like_New).
Frequência: 30m, 2h, 1h30m, 1d ou um número de horas.

<b>/myreminders</b> - Listar seus alertas

<b>/check &lt;id&gt;</b> - Verificar um alerta agora
Exemplo: /check 3f9a1c2b7d10

<b>/stopreminder &lt;id&gt;</b> - Remover um alerta
Exemplo: /stopreminder 3f9a1c2b7d10

<b>/help</b> - Mostrar esta mensagem de ajuda
`

const remindUsage = "❌ Formato incorreto.\n\nUso: /remind <URL> <preço_máximo> <estado> <bateria_mínima> <frequência>\n\nExemplo: /remind https://swappa.com/listings/apple-iphone-13 700 Good 90 45m"

// Service é o que os comandos precisam do monitor
type Service interface {
	CreateWatch(ctx context.Context, chatID string, req monitor.CreateRequest) (models.Watch, models.MatchResult, error)
	Dispatch(ctx context.Context, w models.Watch, res models.MatchResult, reportErrors bool) (bool, error)
	ListWatches(ctx context.Context, chatID string) ([]models.Watch, error)
	CheckWatch(ctx context.Context, chatID, externalID string) (models.Watch, models.MatchResult, error)
	DeleteWatch(ctx context.Context, chatID, externalID string) (int64, error)
}

// Handler trata os comandos recebidos pelo bot
type Handler struct {
	sender  Sender
	service Service
	logger  *zap.Logger
}

// NewHandler cria o tratador de comandos
func NewHandler(sender Sender, service Service, logger *zap.Logger) *Handler {
	return &Handler{sender: sender, service: service, logger: logger.Named("bot")}
}

// SetupCommands recebe atualizações do Telegram até ctx ser cancelado
func SetupCommands(ctx context.Context, api *tgbotapi.BotAPI, h *Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		h.HandleMessage(ctx, update.Message)
	}
}

// parseCommand extrai o comando (sem @botname) e seus argumentos
func parseCommand(text string) (string, []string) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil
	}
	command := strings.ToLower(parts[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	return command, parts[1:]
}

// HandleMessage despacha uma mensagem de texto para o comando correspondente
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	command, args := parseCommand(msg.Text)
	if command == "" {
		return
	}

	chatID := msg.Chat.ID
	switch command {
	case "/start", "/help":
		h.reply(chatID, helpText)
	case "/remind":
		h.handleRemind(ctx, chatID, args)
	case "/myreminders":
		h.handleList(ctx, chatID)
	case "/check":
		h.handleCheck(ctx, chatID, args)
	case "/stopreminder":
		h.handleStop(ctx, chatID, args)
	default:
		h.reply(chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

// parseRemindArgs converte os argumentos de /remind em uma requisição
func parseRemindArgs(args []string) (monitor.CreateRequest, error) {
	if len(args) != 5 {
		return monitor.CreateRequest{}, errors.New(remindUsage)
	}

	price, err := decimal.NewFromString(strings.TrimPrefix(args[1], "$"))
	if err != nil || !price.IsPositive() {
		return monitor.CreateRequest{}, errors.New("❌ Preço inválido. Use um valor numérico positivo.")
	}

	battery, err := strconv.Atoi(strings.TrimSuffix(args[3], "%"))
	if err != nil || battery < 0 || battery > 100 {
		return monitor.CreateRequest{}, errors.New("❌ Bateria inválida. Use um valor entre 0 e 100.")
	}

	return monitor.CreateRequest{
		URL:        args[0],
		MaxPrice:   price,
		Condition:  strings.ReplaceAll(args[2], "_", " "),
		MinBattery: battery,
		Frequency:  args[4],
	}, nil
}

func (h *Handler) handleRemind(ctx context.Context, chatID int64, args []string) {
	req, err := parseRemindArgs(args)
	if err != nil {
		h.replyPlain(chatID, err.Error())
		return
	}

	h.replyPlain(chatID, "⏳ Verificando a página...")

	owner := strconv.FormatInt(chatID, 10)
	w, res, err := h.service.CreateWatch(ctx, owner, req)
	if err != nil {
		h.logger.Warn("create watch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.replyPlain(chatID, createErrorText(err))
		return
	}

	h.reply(chatID, message.Created(w))
	if _, err := h.service.Dispatch(ctx, w, res, true); err != nil {
		h.logger.Warn("first check reply failed", zap.String("external_id", w.ExternalID), zap.Error(err))
	}
}

func createErrorText(err error) string {
	switch {
	case errors.Is(err, monitor.ErrUnsupportedURL):
		return "❌ URL não suportada. Atualmente suportamos apenas páginas de listagem da Swappa."
	case errors.Is(err, models.ErrInvalidInterval):
		return "❌ Frequência inválida. Use, por exemplo, 30m, 2h, 1d ou um número de horas."
	case errors.Is(err, monitor.ErrInvalidRequest):
		return fmt.Sprintf("❌ %v", err)
	default:
		return fmt.Sprintf("❌ Erro ao criar alerta: %v", err)
	}
}

func (h *Handler) handleList(ctx context.Context, chatID int64) {
	watches, err := h.service.ListWatches(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		h.logger.Error("list watches failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.replyPlain(chatID, fmt.Sprintf("❌ Erro ao listar alertas: %v", err))
		return
	}
	h.reply(chatID, message.WatchList(watches))
}

func (h *Handler) handleCheck(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		h.replyPlain(chatID, "❌ Formato incorreto.\n\nUso: /check <id>\n\nExemplo: /check 3f9a1c2b7d10")
		return
	}

	h.replyPlain(chatID, "⏳ Verificando a página...")

	w, res, err := h.service.CheckWatch(ctx, strconv.FormatInt(chatID, 10), args[0])
	if errors.Is(err, monitor.ErrWatchNotFound) {
		h.replyPlain(chatID, "❌ Alerta não encontrado.")
		return
	}
	if err != nil {
		h.logger.Error("check watch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.replyPlain(chatID, fmt.Sprintf("❌ Erro ao verificar alerta: %v", err))
		return
	}
	if _, err := h.service.Dispatch(ctx, w, res, true); err != nil {
		h.logger.Warn("check reply failed", zap.String("external_id", w.ExternalID), zap.Error(err))
	}
}

func (h *Handler) handleStop(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		h.replyPlain(chatID, "❌ Formato incorreto.\n\nUso: /stopreminder <id>\n\nExemplo: /stopreminder 3f9a1c2b7d10")
		return
	}

	n, err := h.service.DeleteWatch(ctx, strconv.FormatInt(chatID, 10), args[0])
	if err != nil {
		h.logger.Error("delete watch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.replyPlain(chatID, fmt.Sprintf("❌ Erro ao remover alerta: %v", err))
		return
	}
	if n == 0 {
		h.replyPlain(chatID, "❌ Alerta não encontrado.")
		return
	}
	h.replyPlain(chatID, fmt.Sprintf("✅ Alerta removido: %s", args[0]))
}

func (h *Handler) reply(chatID int64, text string) {
	if err := sendHTML(h.sender, h.logger, chatID, text); err != nil {
		h.logger.Error("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) replyPlain(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.Error("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
