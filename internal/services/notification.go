package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/irfndi/kdp-pulse/internal/models"
)

// maxDigestItems caps how many notifications go into one message
const maxDigestItems = 5

// telegramSender is the part of the Telegram bot API the notifier needs
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// NotificationService delivers recommended listing notifications over Telegram
type NotificationService struct {
	bot     telegramSender
	breaker *DeliveryBreaker
	printer *message.Printer
	logger  *logrus.Logger
}

// NewNotificationService creates a notifier. An empty token yields a
// notifier that drops every digest.
func NewNotificationService(telegramBotToken string, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}

	ns := &NotificationService{
		breaker: NewDeliveryBreaker(DeliveryBreakerConfig{}, logger),
		printer: message.NewPrinter(language.English),
		logger:  logger,
	}
	if telegramBotToken != "" {
		b, err := bot.New(telegramBotToken, bot.WithSkipGetMe())
		if err != nil {
			logger.WithError(err).Warn("Failed to initialise Telegram bot, digests disabled")
		} else {
			ns.bot = b
		}
	}
	return ns
}

// DeliveryStats returns the delivery breaker counters
func (ns *NotificationService) DeliveryStats() DeliveryBreakerStats {
	return ns.breaker.Stats()
}

// Enabled reports whether a Telegram bot is configured
func (ns *NotificationService) Enabled() bool {
	return ns.bot != nil
}

// SendDigest sends the user's recommended notifications as one message
func (ns *NotificationService) SendDigest(ctx context.Context, user models.User, candidates []models.RankedCandidate) error {
	if ns.bot == nil {
		return nil
	}
	if user.TelegramChatID == nil {
		return fmt.Errorf("user %s has no telegram chat id", user.ID)
	}
	if len(candidates) == 0 {
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID:    *user.TelegramChatID,
		Text:      ns.formatDigestMessage(candidates),
		ParseMode: tgmodels.ParseModeMarkdown,
	}
	err := ns.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := ns.bot.SendMessage(ctx, params)
		return err
	})
	if errors.Is(err, ErrDeliverySuspended) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to send telegram digest: %w", err)
	}

	ns.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"items":   len(candidates),
	}).Info("Sent notification digest")
	return nil
}

// formatDigestMessage renders ranked candidates for Telegram
func (ns *NotificationService) formatDigestMessage(candidates []models.RankedCandidate) string {
	if len(candidates) == 0 {
		return "No listing updates today."
	}

	top := candidates
	if len(top) > maxDigestItems {
		top = top[:maxDigestItems]
	}

	var b strings.Builder
	b.WriteString("📚 *Listing performance update*\n\n")
	for i, c := range top {
		b.WriteString(fmt.Sprintf("%s *%s* %s (%+.1f%%)\n", statusEmoji(c.Status), c.ASIN, statusLabel(c.Status), c.NetImpact))
		if len(c.Drivers) > 0 {
			b.WriteString(fmt.Sprintf("Drivers: %s\n", strings.Join(c.Drivers, ", ")))
		}
		curr := c.Details.Curr
		if curr.AvgBSR > 0 {
			b.WriteString(ns.printer.Sprintf("BSR: %d (was %d)\n", int64(curr.AvgBSR), int64(c.Details.Prev.AvgBSR)))
		}
		if curr.AvgRoyalty > 0 {
			b.WriteString(ns.printer.Sprintf("Royalty/copy: %.2f\n", curr.AvgRoyalty))
		}
		b.WriteString(fmt.Sprintf("Confidence: %s, relevance %d/100\n", c.Confidence, c.Score))
		if i < len(top)-1 {
			b.WriteString("\n")
		}
	}
	if len(candidates) > maxDigestItems {
		b.WriteString(fmt.Sprintf("\n...and %d more\n", len(candidates)-maxDigestItems))
	}
	return b.String()
}

func statusEmoji(s models.Status) string {
	switch s {
	case models.StatusBetter:
		return "📈"
	case models.StatusWorse:
		return "📉"
	default:
		return "➖"
	}
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusBetter:
		return "improving"
	case models.StatusWorse:
		return "declining"
	default:
		return "steady"
	}
}
