package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"configtrack/internal/archive"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived capture sessions",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

func listHistory(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfg.Archive.Path); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No session history at %s (enable archive in %s)\n", cfg.Archive.Path, configPath)
		return nil
	}

	store, err := archive.Open(cfg.Archive.Path, cfg.Archive.Driver)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessions, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sessions in %s\n\n", store.Path())
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPROFILE\tENDED BY\tRECORDS\tDOWNLOADS\tLOG")
	for _, s := range sessions {
		logPath := s.LogPath
		if s.FlushError != "" {
			logPath = "(not saved: " + s.FlushError + ")"
		} else if logPath == "" {
			logPath = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), s.Profile, s.Terminal,
			s.Records, s.DownloadsSaved, logPath)
	}
	return tw.Flush()
}
