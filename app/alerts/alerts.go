package alerts

import (
	"fmt"
	"strconv"

	"docuchat/m/v2/app/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Notifier delivers operator-facing alerts. Webhook-path failures are never
// surfaced to the payment provider, so this channel is the recovery trigger.
type Notifier interface {
	Alert(message string)
}

// SystemNotifier sends alerts to the Telegram system chat and, when
// configured, a Slack channel.
type SystemNotifier struct {
	bot          *telego.Bot
	chatID       telego.ChatID
	slackClient  *slack.Client
	slackChannel string
	serviceName  string
}

func NewSystemNotifier(cfg *config.Config) (*SystemNotifier, error) {
	if cfg.TelegramSystemBotToken == "" {
		return nil, fmt.Errorf("system bot token is empty")
	}
	bot, err := telego.NewBot(cfg.TelegramSystemBotToken, loggerOption(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create system bot: %w", err)
	}
	chatId, _ := strconv.ParseInt(cfg.TelegramSystemTo, 10, 64)

	notifier := &SystemNotifier{
		bot:         bot,
		chatID:      tu.ID(chatId),
		serviceName: cfg.ServiceName,
	}
	if cfg.SlackBotToken != "" && cfg.SlackSystemChannel != "" {
		notifier.slackClient = slack.New(cfg.SlackBotToken)
		notifier.slackChannel = cfg.SlackSystemChannel
	}
	return notifier, nil
}

func (n *SystemNotifier) Alert(message string) {
	message = "🔥 " + n.serviceName + ": " + message
	log.Error(message)
	_, err := n.bot.SendMessage(tu.Message(n.chatID, message))
	if err != nil {
		log.Errorf("Failed to send alert to telegram: %s", err)
	}
	if n.slackClient != nil {
		_, _, _, err = n.slackClient.SendMessage(n.slackChannel, slack.MsgOptionText(message, false))
		if err != nil {
			log.Errorf("Failed to send alert to slack: %s", err)
		}
	}
}

func loggerOption(cfg *config.Config) telego.BotOption {
	if cfg.IsProduction() {
		return telego.WithDefaultLogger(false, true)
	}
	return telego.WithDefaultDebugLogger()
}

// LogNotifier is the non-production stub; alerts go to the log only.
type LogNotifier struct{}

func (LogNotifier) Alert(message string) {
	log.Errorf("ALERT: %s", message)
}
