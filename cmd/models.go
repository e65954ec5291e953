package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/config"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog with prices",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
	cmd.Flags().String("set-default", "", "Make this model the default for new chats")
	return cmd
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	out := cmd.OutOrStdout()

	if id, _ := cmd.Flags().GetString("set-default"); id != "" { //nolint:errcheck // flag is defined above
		if cfg.GetModel(id) == nil {
			return fmt.Errorf("model %q is not in the catalog", id)
		}
		if err := cfg.SetConfigField("default_model", id); err != nil {
			return err
		}
		cfg.DefaultModel = id
		fmt.Fprintf(out, "Default model: %s\n", id)
		return nil
	}

	def := cfg.ChatDefaults().Model
	fmt.Fprintln(out, "Available Models:")
	fmt.Fprintln(out, strings.Repeat("─", 40))
	for _, m := range cfg.Models {
		marker := " "
		if m.ID == def {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s (%s)\n", marker, m.Name, m.ID)
		if m.ContextWindow > 0 {
			fmt.Fprintf(out, "    Context: %d tokens, default reply %d tokens\n", m.ContextWindow, m.DefaultMaxTokens)
		}
		if m.CostPer1MIn > 0 || m.CostPer1MOut > 0 {
			fmt.Fprintf(out, "    Cost: $%.2f / 1M in, $%.2f / 1M out\n", m.CostPer1MIn, m.CostPer1MOut)
		}
	}
	fmt.Fprintf(out, "\nEdit %s to add models.\n", config.GlobalConfigPath())
	return nil
}
