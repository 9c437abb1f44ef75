// Package poller ждёт появления нового поста на стене.
//
// Свежесть поста определяется только по возрасту (now - date <= Freshness),
// а не по id и не по сравнению с базовым постом: выдача wall.get может
// отставать и кэшироваться, возраст переживает это лучше.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/vk"
)

const (
	DefaultWindow      = 13
	DefaultFreshness   = 666 * time.Second
	DefaultInterval    = time.Second
	DefaultMaxAttempts = 300
)

var ErrPostNotFound = errors.New("post not found")

// Feed: всё, что поллеру нужно от API.
type Feed interface {
	RecentPosts(ctx context.Context, ownerID string, count int) ([]vk.WallItem, error)
}

type Config struct {
	Window      int
	Freshness   time.Duration
	Interval    time.Duration
	MaxAttempts int
}

type Poller struct {
	feed Feed
	cfg  Config
	log  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Arrival: результат ожидания.
type Arrival struct {
	Post     vk.WallItem
	PostedAt time.Time
	Baseline *vk.WallItem
	Consumed int // сколько попыток из бюджета ушло
	Fetches  int
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithSleep подменяет ожидание (в тестах, например, на мгновенное).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

func New(feed Feed, cfg Config, log *zap.Logger, opts ...Option) *Poller {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Poller{
		feed:  feed,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run: ждём target, потом ловим свежий пост.
func (p *Poller) Run(ctx context.Context, target time.Time, ownerID string) (Arrival, error) {
	if err := p.WaitUntil(ctx, target); err != nil {
		return Arrival{}, err
	}
	p.log.Info("the time has come, starting to wait for new post", zap.String("owner_id", ownerID))
	return p.Await(ctx, ownerID)
}

// WaitUntil: единственное долгое ожидание. Прошедший target = опрос сразу.
func (p *Poller) WaitUntil(ctx context.Context, target time.Time) error {
	delay := target.Sub(p.now())
	if delay < 0 {
		delay = 0
	}
	h, m := int(delay.Hours()), int(delay.Minutes())%60
	p.log.Info("waiting for post",
		zap.String("wait", fmt.Sprintf("%d:%02d", h, m)),
		zap.String("until", humanize.Time(target)),
		zap.Time("target", target),
	)
	return p.sleep(ctx, delay)
}

// Baseline: последний незакреплённый пост, который уже есть на стене.
func (p *Poller) Baseline(ctx context.Context, ownerID string) (*vk.WallItem, error) {
	items, err := p.feed.RecentPosts(ctx, ownerID, p.cfg.Window)
	if err != nil {
		return nil, err
	}
	return p.baseline(ownerID, items), nil
}

func (p *Poller) baseline(ownerID string, items []vk.WallItem) *vk.WallItem {
	latest, ok := vk.LatestUnpinned(items)
	if !ok {
		p.log.Info("no posts on the wall yet", zap.String("owner_id", ownerID))
		return nil
	}
	p.log.Info("current latest post",
		zap.String("url", vk.PostURL(ownerID, latest.ID)),
		zap.Time("posted_at", latest.CreatedAt()),
	)
	return &latest
}

// Await: цикл ожидания. Первый запрос даёт базовый пост, дальше идут повторы.
// Без свежего поста делает ровно MaxAttempts+1 запросов.
func (p *Poller) Await(ctx context.Context, ownerID string) (Arrival, error) {
	remaining := p.cfg.MaxAttempts
	fetches := 0
	var base *vk.WallItem

	for {
		items, err := p.feed.RecentPosts(ctx, ownerID, p.cfg.Window)
		fetches++
		if err != nil {
			return Arrival{Baseline: base, Fetches: fetches}, err
		}
		if fetches == 1 {
			base = p.baseline(ownerID, items)
		}

		latest, ok := vk.LatestUnpinned(items)
		if ok && p.IsFresh(latest) {
			p.log.Info("new post found",
				zap.String("url", vk.PostURL(ownerID, latest.ID)),
				zap.Int("attempts_used", p.cfg.MaxAttempts-remaining),
			)
			return Arrival{
				Post:     latest,
				PostedAt: latest.CreatedAt(),
				Baseline: base,
				Consumed: p.cfg.MaxAttempts - remaining,
				Fetches:  fetches,
			}, nil
		}

		if remaining == 0 {
			return Arrival{Baseline: base, Consumed: p.cfg.MaxAttempts, Fetches: fetches},
				fmt.Errorf("%w: %s: no fresh post after %d attempts", ErrPostNotFound, ownerID, fetches)
		}
		remaining--

		if ok {
			p.log.Debug("latest post is stale",
				zap.Int("post_id", latest.ID),
				zap.Duration("age", p.now().Sub(latest.CreatedAt())),
				zap.Int("attempts_left", remaining),
			)
		} else {
			p.log.Debug("no unpinned posts in window", zap.Int("attempts_left", remaining))
		}

		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return Arrival{Baseline: base, Consumed: p.cfg.MaxAttempts - remaining, Fetches: fetches}, err
		}
	}
}

// IsFresh: возраст поста не больше порога.
func (p *Poller) IsFresh(it vk.WallItem) bool {
	return p.now().Sub(it.CreatedAt()) <= p.cfg.Freshness
}

// Sleep спит d, но просыпается при отмене контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
