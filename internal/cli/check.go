package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/G1P0/vkomment/internal/poller"
	"github.com/G1P0/vkomment/internal/vk"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Resolve the group and show its latest non-pinned post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd)
		},
	}
}

func (a *app) runCheck(cmd *cobra.Command) error {
	ctx := cmd.Context()

	group := a.groupRef(cmd)
	client, err := a.userClient(cmd)
	if err != nil {
		return err
	}
	owner, err := client.ResolveGroupID(ctx, group)
	if err != nil {
		return err
	}

	p := poller.New(client, poller.Config{
		Window:    a.cfg.Wait.Window,
		Freshness: a.cfg.Wait.Freshness.Duration,
	}, a.log, a.pollerOpts...)
	latest, err := p.Baseline(ctx, owner)
	if err != nil {
		return fmt.Errorf("fetch wall: %w", err)
	}

	fmt.Fprintf(a.stdout, "group:  %s (owner_id=%s)\n", group, owner)
	if latest == nil {
		fmt.Fprintln(a.stdout, "latest: no posts yet")
		return nil
	}
	fmt.Fprintf(a.stdout, "latest: %s\n", vk.PostURL(owner, latest.ID))
	fmt.Fprintf(a.stdout, "posted: %s (%s)\n",
		humanize.Time(latest.CreatedAt()), latest.CreatedAt().UTC().Format(time.RFC3339))
	fmt.Fprintf(a.stdout, "fresh:  %t\n", p.IsFresh(*latest))
	if text := snippet(latest.Text, 80); text != "" {
		fmt.Fprintf(a.stdout, "text:   %s\n", text)
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
