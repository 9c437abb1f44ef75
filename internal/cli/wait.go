package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/config"
	"github.com/G1P0/vkomment/internal/credential"
	"github.com/G1P0/vkomment/internal/poller"
	"github.com/G1P0/vkomment/internal/schedule"
	"github.com/G1P0/vkomment/internal/store"
	"github.com/G1P0/vkomment/internal/vk"
)

const (
	commentPlus       = "+"
	commentDoublePlus = "++"
	commentMedal      = "\U0001F947"
)

// waitFlags: флаги корневой команды.
type waitFlags struct {
	postedAt   string
	sharp      bool
	localTime  bool
	plus       bool
	doublePlus bool
	medal      bool
	text       string
	workaround bool
	attempts   int
	freshness  time.Duration
}

// waitOptions: флаги, наложенные на конфиг.
type waitOptions struct {
	group     string
	postedAt  string
	sharp     bool
	localTime bool
	comment   string
	attempts  int
	freshness time.Duration
}

func addWaitFlags(root *cobra.Command, a *app) {
	f := root.Flags()
	f.StringVarP(&a.wait.postedAt, "posted-at", "T", schedule.DefaultClock, "expected post time, HH:MM")
	f.BoolVarP(&a.wait.sharp, "soon-and-sharp", "s", false, "wait for the beginning of the next hour")
	f.BoolVarP(&a.wait.localTime, "local-time", "l", false, "use local time instead of UTC")
	f.BoolVarP(&a.wait.plus, "plus", "p", false, `comment with "+" (default)`)
	f.BoolVarP(&a.wait.doublePlus, "double-plus", "d", false, `comment with "++"`)
	f.BoolVarP(&a.wait.medal, "medal", "m", false, "comment with a gold medal emoji")
	f.StringVarP(&a.wait.text, "comment-text", "c", "", "custom comment text")
	f.BoolVarP(&a.wait.workaround, "github-workaround", "G", false, "treat empty group-id and posted-at as defaults")
	f.IntVar(&a.wait.attempts, "attempts", config.DefaultAttempts, "polls after the first one before giving up")
	f.DurationVar(&a.wait.freshness, "freshness", config.DefaultFreshness, "max age of a post that counts as new")

	root.MarkFlagsMutuallyExclusive("posted-at", "soon-and-sharp")
	root.MarkFlagsMutuallyExclusive("plus", "double-plus", "medal", "comment-text")

	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return a.runWait(cmd)
	}
}

func (a *app) waitOptions(cmd *cobra.Command) (waitOptions, error) {
	flags := cmd.Flags()
	w := a.cfg.Wait
	opts := waitOptions{
		group:     a.groupRef(cmd),
		postedAt:  w.PostedAt,
		sharp:     a.wait.sharp,
		localTime: w.LocalTime,
		comment:   w.Comment,
		attempts:  w.MaxAttempts(),
		freshness: w.Freshness.Duration,
	}
	if flags.Changed("posted-at") {
		opts.postedAt = a.wait.postedAt
	}
	if flags.Changed("local-time") {
		opts.localTime = a.wait.localTime
	}
	if flags.Changed("attempts") {
		opts.attempts = a.wait.attempts
	}
	if flags.Changed("freshness") {
		opts.freshness = a.wait.freshness
	}

	switch {
	case flags.Changed("comment-text"):
		opts.comment = a.wait.text
	case a.wait.medal:
		opts.comment = commentMedal
	case a.wait.doublePlus:
		opts.comment = commentDoublePlus
	case a.wait.plus:
		opts.comment = commentPlus
	}

	// CI передаёт незаданные инпуты пустыми строками
	if a.wait.workaround {
		if strings.TrimSpace(opts.group) == "" {
			opts.group = config.DefaultGroup
		}
		if strings.TrimSpace(opts.postedAt) == "" {
			opts.postedAt = schedule.DefaultClock
		}
	}

	if strings.TrimSpace(opts.comment) == "" {
		return opts, errors.New("comment text is empty")
	}
	if opts.attempts < 0 {
		return opts, fmt.Errorf("attempts must be >= 0, got %d", opts.attempts)
	}
	if opts.freshness <= 0 {
		return opts, fmt.Errorf("freshness must be positive, got %s", opts.freshness)
	}
	return opts, nil
}

func (a *app) newClient(token string) *vk.Client {
	return vk.New(vk.Config{
		Token:   token,
		Version: a.cfg.VK.APIVersion,
		BaseURL: a.cfg.VK.BaseURL,
		Timeout: a.cfg.VK.Timeout.Duration,
	})
}

// userClient: клиент с токеном пользователя из цепочки провайдеров.
func (a *app) userClient(cmd *cobra.Command) (*vk.Client, error) {
	if a.token != "" && !a.noKeyring {
		if err := credential.DefaultKeyring().Save(a.token); err != nil {
			a.log.Warn("cannot save token to keyring", zap.Error(err))
		}
	}
	token, err := a.credentials().Token(cmd.Context())
	if err != nil {
		return nil, err
	}
	return a.newClient(token), nil
}

func (a *app) runWait(cmd *cobra.Command) error {
	ctx := cmd.Context()

	opts, err := a.waitOptions(cmd)
	if err != nil {
		return err
	}
	target, err := schedule.Resolve(a.now(), schedule.Location(opts.localTime), opts.postedAt, opts.sharp)
	if err != nil {
		return err
	}

	client, err := a.userClient(cmd)
	if err != nil {
		return err
	}
	// группу проверяем до долгого сна
	owner, err := client.ResolveGroupID(ctx, opts.group)
	if err != nil {
		return err
	}
	a.log.Info("group resolved", zap.String("group", opts.group), zap.String("owner_id", owner))

	hist := a.openHistory()
	defer hist.Close()
	hist.start(ctx, store.Run{
		GroupRef: opts.group,
		OwnerID:  owner,
		TargetAt: target,
		Comment:  opts.comment,
	})

	p := poller.New(client, poller.Config{
		Window:      a.cfg.Wait.Window,
		Freshness:   opts.freshness,
		Interval:    a.cfg.Wait.Interval.Duration,
		MaxAttempts: opts.attempts,
	}, a.log, a.pollerOpts...)

	arrival, err := p.Run(ctx, target, owner)
	if err != nil {
		hist.finish(ctx, store.Outcome{Attempts: arrival.Consumed, Err: err})
		a.notifyFinish(ctx, fmt.Sprintf("vkomment: %s: %v", opts.group, err))
		return err
	}

	postURL := vk.PostURL(owner, arrival.Post.ID)
	commentID, err := client.CreateComment(ctx, owner, arrival.Post.ID, opts.comment)
	if err != nil {
		err = fmt.Errorf("create comment on %s: %w", postURL, err)
		hist.finish(ctx, store.Outcome{PostID: arrival.Post.ID, Attempts: arrival.Consumed, Err: err})
		a.notifyFinish(ctx, fmt.Sprintf("vkomment: %s: %v", opts.group, err))
		return err
	}

	commentURL := vk.CommentURL(owner, arrival.Post.ID, commentID)
	a.log.Info("comment posted",
		zap.String("url", commentURL),
		zap.Duration("post_age", a.now().Sub(arrival.PostedAt)),
		zap.Int("attempts_used", arrival.Consumed),
	)
	fmt.Fprintln(a.stdout, commentURL)

	hist.finish(ctx, store.Outcome{PostID: arrival.Post.ID, CommentID: commentID, Attempts: arrival.Consumed})
	a.notifyFinish(ctx, "vkomment: commented "+commentURL)
	return nil
}
