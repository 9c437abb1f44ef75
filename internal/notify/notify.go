// Package notify шлёт короткие уведомления: личкой в VK от сообщества или в Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/G1P0/vkomment/internal/vk"
)

type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// WithTime дописывает время отправки в UTC.
func WithTime(text string, now time.Time) string {
	return fmt.Sprintf("%s (at %s)", text, now.UTC().Format("15:04:05 -07:00, 02 Jan 2006"))
}

// RandomID: random_id для messages.send, VK по нему отсекает дубли.
func RandomID() int64 {
	const lo, hi = 1 << 16, 1 << 32
	return lo + rand.Int63n(hi-lo+1)
}

type messageSender interface {
	SendMessage(ctx context.Context, userID string, randomID int64, text string) (int, error)
}

type VK struct {
	client messageSender
	userID string
}

func NewVK(client *vk.Client, userID string) *VK {
	return &VK{client: client, userID: userID}
}

func (n *VK) Name() string { return "vk" }

func (n *VK) Notify(ctx context.Context, text string) error {
	if n.userID == "" {
		return errors.New("vk notify: user id is required")
	}
	if _, err := n.client.SendMessage(ctx, n.userID, RandomID(), text); err != nil {
		return fmt.Errorf("vk notify: %w", err)
	}
	return nil
}

type Telegram struct {
	token    string
	chatID   int64
	endpoint string

	bot *tgbotapi.BotAPI
}

func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{token: token, chatID: chatID, endpoint: tgbotapi.APIEndpoint}
}

func (n *Telegram) Name() string { return "telegram" }

func (n *Telegram) Notify(_ context.Context, text string) error {
	if n.token == "" || n.chatID == 0 {
		return errors.New("telegram notify: token and chat id are required")
	}
	// бот создаётся лениво: NewBotAPI сразу ходит в getMe
	if n.bot == nil {
		bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(n.token, n.endpoint)
		if err != nil {
			return fmt.Errorf("telegram notify: %w", err)
		}
		bot.Debug = false
		n.bot = bot
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("telegram notify: %w", err)
	}
	return nil
}

// Multi шлёт во все каналы; ошибки собираются, а не обрывают рассылку.
type Multi []Notifier

func (m Multi) Name() string {
	s := ""
	for i, n := range m {
		if i > 0 {
			s += ","
		}
		s += n.Name()
	}
	return s
}

func (m Multi) Notify(ctx context.Context, text string) error {
	if len(m) == 0 {
		return errors.New("no notifiers configured")
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
