package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/config"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show login, open chat, and configuration",
		Long: `Display the current parley status including:
  - Logged-in account
  - Open chat and its running cost
  - Server endpoints and file locations`,
		Args: cobra.NoArgs,
		RunE: withApp(runStatus),
	}
	cmd.Flags().BoolP("verbose", "v", false, "Include event broker metrics")
	return cmd
}

func runStatus(cmd *cobra.Command, a *app, _ []string) error {
	out := cmd.OutOrStdout()
	v := a.store.View()

	fmt.Fprintln(out, "Parley Status")
	fmt.Fprintln(out, strings.Repeat("─", 40))
	fmt.Fprintln(out)

	switch {
	case v.User == nil:
		fmt.Fprintln(out, "Account: not logged in")
	default:
		fmt.Fprintf(out, "Account: %s (%d saved chats)\n", v.User.DisplayName(), len(v.Chats))
	}

	c := v.Active
	status := "unsaved draft"
	if v.ActiveSave {
		status = "saved"
	}
	fmt.Fprintf(out, "Chat:    %s (%s, %d messages)\n", c.Label(), status, len(c.Messages))
	fmt.Fprintf(out, "Model:   %s\n", c.Settings.Model)
	fmt.Fprintf(out, "Cost:    %s\n", chat.FormatCostUSD(c.RunningCost()))
	if v.HasStash {
		fmt.Fprintln(out, "Draft:   kept aside; \"parley open\" returns to it")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Server:  %s\n", a.cfg.ServerURL)
	fmt.Fprintf(out, "Stream:  %s\n", a.cfg.StreamURL)
	fmt.Fprintf(out, "Config:  %s\n", config.GlobalConfigPath())
	if a.database != nil {
		fmt.Fprintf(out, "State:   %s (schema v%d)\n", a.database.Path(), a.database.SchemaVersion())
	} else {
		fmt.Fprintln(out, "State:   in memory")
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose { //nolint:errcheck // flag is defined above
		fmt.Fprintln(out)
		fmt.Fprint(out, a.hub.DebugString())
	}
	return nil
}
