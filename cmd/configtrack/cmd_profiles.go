package main

import (
	"fmt"

	"configtrack/internal/config"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List capture profiles",
	Args:  cobra.NoArgs,
	RunE:  listProfiles,
}

func listProfiles(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, name := range config.ProfileNames() {
		p, err := config.LookupProfile(name)
		if err != nil {
			return err
		}
		marker := " "
		if cfg != nil && cfg.Profile == name {
			marker = "*"
		}
		log := "-"
		if p.PersistLog {
			log = p.LogPrefix + "_YYYYMMDD_HHMMSS.json"
		}
		fmt.Fprintf(w, "%s %-15s %s\n", marker, name, p.Description)
		fmt.Fprintf(w, "    mode=%s downloads=%t log=%s\n", p.Mode, p.Downloads, log)
	}
	return nil
}
