package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"qbwc-webhook-adapter/internal/archive"
	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/webhooks"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending request queue",
}

type queueListing struct {
	QueueLength int      `json:"queue_length" yaml:"queue_length"`
	Items       []string `json:"items" yaml:"items"`
}

var queueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List queued qbXML requests in serving order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue(cfg.Queue)
		if err != nil {
			return err
		}
		defer closeQueue()

		items, err := q.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list queue: %w", err)
		}
		if items == nil {
			items = []string{}
		}
		return render(cmd, queueListing{QueueLength: len(items), Items: items})
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue(cfg.Queue)
		if err != nil {
			return err
		}
		defer closeQueue()

		n, err := q.Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return render(cmd, map[string]int{"cleared": n})
	},
}

var deadLettersCmd = &cobra.Command{
	Use:     "deadletters",
	Aliases: []string{"dead-letters"},
	Short:   "Inspect failed webhook deliveries",
}

var deadLettersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored dead letters",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		letters, err := webhooks.NewDeadLetters(cfg.DeadLetter.Dir).List()
		if err != nil {
			return fmt.Errorf("list dead letters: %w", err)
		}
		if letters == nil {
			letters = []webhooks.StoredDeadLetter{}
		}
		return render(cmd, letters)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived qbXML answers",
}

var archiveLatestCmd = &cobra.Command{
	Use:   "latest <entity>",
	Short: "Show the most recent archived answer for an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := entity.Default().Lookup(args[0])
		if err != nil {
			return err
		}
		rec, err := archive.NewWriter(cfg.Archive.Dir).Latest(kind)
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("no archived answer for %s in %s", kind.Name, cfg.Archive.Dir)
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		return render(cmd, rec)
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd, queueClearCmd)
	deadLettersCmd.AddCommand(deadLettersListCmd)
	archiveCmd.AddCommand(archiveLatestCmd)
	rootCmd.AddCommand(queueCmd, deadLettersCmd, archiveCmd)
}
