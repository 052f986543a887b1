package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Moneyball/internal/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print dashboard events from NATS as they happen",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		subject, _ := cmd.Flags().GetString("subject")
		replay, _ := cmd.Flags().GetBool("replay")
		client, err := events.NewNATSClient(ctx, cfg.Events.URL, newLogger(cfg))
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		opts := events.SubscribeOptions{Filter: subject, Replay: replay}
		if err := client.Subscribe(ctx, opts, func(env events.Envelope) {
			fmt.Fprintf(out, "%s %s %s\n", env.Timestamp.Format(time.RFC3339), env.Subject, env.Data)
		}); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().String("subject", events.SubjectAll, "Subject filter")
	watchCmd.Flags().Bool("replay", false, "Print the retained history before new events")
}
