package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	coretelegram "github.com/m3rciful/menubot/core/telegram"
)

var dropPending bool

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Bot API webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Register webhook.url with the configured secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig()
		if err != nil {
			return err
		}
		defer done()
		if cfg.Webhook.URL == "" {
			return errors.New("webhook.url is not configured")
		}
		gw, err := coretelegram.NewGateway(cfg)
		if err != nil {
			return err
		}
		if err := gw.SetWebhook(cmd.Context(), cfg.Webhook.URL, cfg.Webhook.Secret, dropPending); err != nil {
			return fmt.Errorf("setWebhook: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "webhook set: %s (secret: %t)\n", cfg.Webhook.URL, cfg.SecretConfigured())
		return nil
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig()
		if err != nil {
			return err
		}
		defer done()
		gw, err := coretelegram.NewGateway(cfg)
		if err != nil {
			return err
		}
		if err := gw.RemoveWebhook(cmd.Context(), dropPending); err != nil {
			return fmt.Errorf("deleteWebhook: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
		return nil
	},
}

var webhookInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig()
		if err != nil {
			return err
		}
		defer done()
		gw, err := coretelegram.NewGateway(cfg)
		if err != nil {
			return err
		}
		wh, err := gw.WebhookInfo(cmd.Context())
		if err != nil {
			return fmt.Errorf("getWebhookInfo: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "url:             %s\n", wh.Listen)
		fmt.Fprintf(out, "pending updates: %d\n", wh.PendingUpdates)
		if wh.ErrorMessage != "" {
			fmt.Fprintf(out, "last error:      %s\n", wh.ErrorMessage)
		}
		return nil
	},
}

func init() {
	webhookSetCmd.Flags().BoolVar(&dropPending, "drop-pending", false, "drop updates queued on the Bot API side")
	webhookDeleteCmd.Flags().BoolVar(&dropPending, "drop-pending", false, "drop updates queued on the Bot API side")

	webhookCmd.AddCommand(webhookSetCmd)
	webhookCmd.AddCommand(webhookDeleteCmd)
	webhookCmd.AddCommand(webhookInfoCmd)
}
