package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/notify"
)

func newNotifyCmd(a *app) *cobra.Command {
	var (
		userID      string
		botKey      string
		telegram    bool
		includeTime bool
	)
	cmd := &cobra.Command{
		Use:   "notify MESSAGE",
		Short: "Send a message from the community bot (and optionally Telegram)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nc := a.cfg.Notify
			if cmd.Flags().Changed("user-id") {
				nc.VKUserID = userID
			}
			if cmd.Flags().Changed("bot-key") {
				nc.VKBotKey = botKey
			}

			var targets notify.Multi
			if nc.VKUserID != "" || nc.VKBotKey != "" {
				if !nc.HasVK() {
					return errors.New("vk notify needs both user id and bot key")
				}
				targets = append(targets, notify.NewVK(a.newClient(nc.VKBotKey), nc.VKUserID))
			}
			if telegram {
				if !nc.HasTelegram() {
					return errors.New("telegram notify needs notify.telegram.chat_id and a bot token in $" + nc.Telegram.TokenEnv)
				}
				targets = append(targets, notify.NewTelegram(nc.Telegram.Token, nc.Telegram.ChatID))
			}
			if len(targets) == 0 {
				return errors.New("no notifier configured: pass --user-id and --bot-key or --telegram")
			}

			text := args[0]
			if includeTime {
				text = notify.WithTime(text, a.now())
			}
			if err := targets.Notify(cmd.Context(), text); err != nil {
				return err
			}
			a.log.Info("notification sent", zap.String("via", targets.Name()))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&userID, "user-id", "u", "", "VK user id to message (default notify.vk_user_id)")
	f.StringVarP(&botKey, "bot-key", "k", "", "community bot key (default $VK_BOT_KEY)")
	f.BoolVar(&telegram, "telegram", false, "also send to the configured Telegram chat")
	f.BoolVarP(&includeTime, "include-time", "T", false, "append the current UTC time")
	return cmd
}

// notifyFinish: итог запуска, если notify.on_finish. Ошибки только в лог.
func (a *app) notifyFinish(ctx context.Context, text string) {
	nc := a.cfg.Notify
	if !nc.OnFinish {
		return
	}
	var targets notify.Multi
	if nc.HasVK() {
		targets = append(targets, notify.NewVK(a.newClient(nc.VKBotKey), nc.VKUserID))
	}
	if nc.HasTelegram() {
		targets = append(targets, notify.NewTelegram(nc.Telegram.Token, nc.Telegram.ChatID))
	}
	if len(targets) == 0 {
		a.log.Warn("notify.on_finish is set but no notifier is configured")
		return
	}
	if err := targets.Notify(context.WithoutCancel(ctx), notify.WithTime(text, a.now())); err != nil {
		a.log.Warn("finish notification failed", zap.String("via", targets.Name()), zap.Error(err))
	}
}
