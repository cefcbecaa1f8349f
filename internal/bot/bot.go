package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender é a parte da API do Telegram usada para enviar mensagens
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Init inicializa o bot do Telegram
func Init(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if err.Error() == "Unauthorized" {
			return nil, fmt.Errorf("token do Telegram inválido ou expirado. Verifique o TELEGRAM_BOT_TOKEN no arquivo .env. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %w", err)
	}

	bot.Debug = false
	logger.Info("bot authorized", zap.String("username", bot.Self.UserName))
	return bot, nil
}

// TelegramNotifier entrega mensagens HTML pelo Telegram
type TelegramNotifier struct {
	sender Sender
	logger *zap.Logger
}

// NewTelegramNotifier cria o notificador sobre a API do Telegram
func NewTelegramNotifier(sender Sender, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, logger: logger.Named("notifier")}
}

// Send envia a mensagem em HTML. Se o Telegram recusar a marcação, tenta de
// novo sem formatação.
func (n *TelegramNotifier) Send(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id inválido %q: %w", chatID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return sendHTML(n.sender, n.logger, id, text)
}

func sendHTML(sender Sender, logger *zap.Logger, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := sender.Send(msg); err != nil {
		logger.Warn("html send failed, retrying as plain text",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		msg.ParseMode = ""
		if _, err2 := sender.Send(msg); err2 != nil {
			return fmt.Errorf("erro ao enviar mensagem: %w", err2)
		}
	}
	return nil
}
