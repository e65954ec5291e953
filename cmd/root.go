// Package cmd provides the CLI commands for parley.
package cmd

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parley",
		Short: "Chat with language models from the terminal",
		Long: `Parley keeps a chat session with a language model service.

Chats are drafts until saved; saved chats are stored on the server under
your account. The open chat and your login survive restarts.

Examples:
  parley login alice
  parley send "Explain goroutines in one paragraph"
  parley save
  parley chats
  parley export --clipboard`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug logging to the data directory")
	flags.Bool("ephemeral", false, "Keep state in memory only for this invocation")
	flags.String("config", "", "Read configuration from this file instead of the standard locations")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newAccountCmd(),
		newStatusCmd(),
		newModelsCmd(),
		newChatsCmd(),
		newNewCmd(),
		newOpenCmd(),
		newShowCmd(),
		newSaveCmd(),
		newDeleteCmd(),
		newRenameCmd(),
		newSetCmd(),
		newSendCmd(),
		newReplyCmd(),
		newContinueCmd(),
		newRerollCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newExportCmd(),
		newImportCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
