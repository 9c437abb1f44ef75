package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/store"
	"github.com/G1P0/vkomment/internal/vk"
)

// runHistory пишет запуск в sqlite. Любая ошибка тут только warning.
type runHistory struct {
	st  *store.Store
	id  string
	log *zap.Logger
}

func (a *app) openHistory() *runHistory {
	h := &runHistory{log: a.log}
	if a.cfg.Storage.Disabled {
		return h
	}
	st, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		a.log.Warn("run history disabled", zap.String("path", a.cfg.Storage.Path), zap.Error(err))
		return h
	}
	h.st = st
	return h
}

func (h *runHistory) start(ctx context.Context, r store.Run) {
	if h.st == nil {
		return
	}
	run, err := h.st.StartRun(ctx, r)
	if err != nil {
		h.log.Warn("cannot record run", zap.Error(err))
		return
	}
	h.id = run.ID
	h.log.Debug("run recorded", zap.String("run_id", run.ID))
}

func (h *runHistory) finish(ctx context.Context, out store.Outcome) {
	if h.st == nil || h.id == "" {
		return
	}
	// отмена контекста не должна терять итог
	if err := h.st.FinishRun(context.WithoutCancel(ctx), h.id, out); err != nil {
		h.log.Warn("cannot record run outcome", zap.String("run_id", h.id), zap.Error(err))
	}
}

func (h *runHistory) Close() {
	if h.st == nil {
		return
	}
	if err := h.st.Close(); err != nil {
		h.log.Warn("close history", zap.Error(err))
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(a.cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer st.Close()

			if stats {
				return a.printStats(cmd.Context(), st)
			}
			return a.printRuns(cmd.Context(), st, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "how many runs to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "show run counts per status")
	return cmd
}

func (a *app) printRuns(ctx context.Context, st *store.Store, limit int) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs yet")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tGROUP\tSTATUS\tATTEMPTS\tRESULT")
	for _, r := range runs {
		result := r.Error
		switch {
		case r.CommentID != 0:
			result = vk.CommentURL(r.OwnerID, r.PostID, r.CommentID)
		case r.Status == store.StatusWaiting:
			result = "target " + humanize.Time(r.TargetAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(r.StartedAt), r.GroupRef, r.Status, r.Attempts, result)
	}
	return w.Flush()
}

func (a *app) printStats(ctx context.Context, st *store.Store) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	total := 0
	for _, c := range stats {
		total += c
	}
	fmt.Fprintf(a.stdout, "runs: %s\n", humanize.Comma(int64(total)))
	for _, status := range []string{store.StatusCommented, store.StatusFailed, store.StatusWaiting} {
		fmt.Fprintf(a.stdout, "  %-9s %s\n", status, humanize.Comma(int64(stats[status])))
	}
	return nil
}
