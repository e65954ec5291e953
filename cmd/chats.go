package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/events"
)

func newChatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List saved chats",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			v := a.store.View()
			out := cmd.OutOrStdout()
			if v.User == nil {
				fmt.Fprintln(out, "Not logged in; only the local draft is available.")
				return nil
			}
			if len(v.Chats) == 0 {
				fmt.Fprintln(out, "No saved chats")
				return nil
			}
			for _, e := range v.Chats {
				marker := " "
				if e.Active {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s\n", marker, e.ID, e.Label)
			}
			return nil
		}),
	}
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new draft",
		Long:  `Start a new draft. An unsaved draft with messages is kept aside and comes back with "parley open".`,
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			a.store.NewChat()
			fmt.Fprintln(cmd.OutOrStdout(), "Started a new draft")
			return nil
		}),
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [chat-id]",
		Short: "Open a saved chat, or return to the draft",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id := ""
			if len(args) == 1 {
				id = resolveChat(a.store.View(), args[0])
			}
			if err := a.store.OpenChat(cmd.Context(), id); err != nil {
				return fmt.Errorf("opening chat: %w", err)
			}
			printChat(cmd.OutOrStdout(), a.store.View())
			return nil
		}),
	}
}

// resolveChat expands a unique id prefix to the listed id.
func resolveChat(v events.StateEvent, ref string) string {
	match := ""
	for _, e := range v.Chats {
		if e.ID == ref {
			return ref
		}
		if strings.HasPrefix(e.ID, ref) {
			if match != "" {
				return ref
			}
			match = e.ID
		}
	}
	if match == "" {
		return ref
	}
	return match
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the open chat",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			printChat(cmd.OutOrStdout(), a.store.View())
			return nil
		}),
	}
}

func printChat(out io.Writer, v events.StateEvent) {
	c := v.Active
	status := "draft"
	if v.ActiveSave {
		status = "saved " + c.ID
	}
	fmt.Fprintf(out, "%s (%s, %s, %s)\n", c.Label(), status, c.Settings.Model, chat.FormatCostUSD(c.RunningCost()))
	for i, m := range c.Messages {
		fmt.Fprintf(out, "\n[%d] %s:\n%s\n", i+1, m.Role, m.Content)
		if m.Continuable() {
			fmt.Fprintln(out, "(stopped at the token limit; \"parley continue\" extends it)")
		}
		if m.Error != "" {
			fmt.Fprintf(out, "(error: %s)\n", m.Error)
		}
	}
}

// resolveMessage finds a message by 1-based position, "last", or id
// prefix.
func resolveMessage(c *chat.Session, ref string) (string, error) {
	if len(c.Messages) == 0 {
		return "", errors.New("chat has no messages")
	}
	if ref == "last" {
		return c.Messages[len(c.Messages)-1].ID, nil
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		if n < 1 || n > len(c.Messages) {
			return "", fmt.Errorf("message %d out of range 1-%d", n, len(c.Messages))
		}
		return c.Messages[n-1].ID, nil
	}
	match := ""
	for _, m := range c.Messages {
		if strings.HasPrefix(m.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("message id %q is ambiguous", ref)
			}
			match = m.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no message %q", ref)
	}
	return match, nil
}

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save the draft to your account",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if !a.store.SaveDraft() {
				if a.store.View().User == nil {
					return errors.New("log in to save chats")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Chat is already saved")
				return nil
			}
			if err := a.store.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("saving chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved as %s\n", a.store.View().Active.ID)
			return nil
		}),
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the open saved chat",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.store.DeleteCurrent(cmd.Context()); err != nil {
				return fmt.Errorf("deleting chat: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
			return nil
		}),
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [name]",
		Short: "Name the open chat; no name returns to the derived label",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.store.Rename(strings.Join(args, " "))
		}),
	}
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the open chat's generation settings",
		Args:  cobra.NoArgs,
		RunE:  withApp(runSet),
	}
	cmd.Flags().String("model", "", "Model id")
	cmd.Flags().Int("determinism", 0, "Determinism from 0 (creative) to 100 (deterministic)")
	cmd.Flags().Int64("max-tokens", 0, "Reply token budget")
	cmd.Flags().String("prompt", "", "System prompt")
	cmd.Flags().String("api-key", "", "API key override for this chat")
	return cmd
}

func runSet(cmd *cobra.Command, a *app, _ []string) error {
	flags := cmd.Flags()
	err := a.store.UpdateSettings(func(s *chat.Settings) {
		if flags.Changed("model") {
			s.Model, _ = flags.GetString("model") //nolint:errcheck // flag is defined above
			if m := a.cfg.GetModel(s.Model); m != nil && !flags.Changed("max-tokens") && m.DefaultMaxTokens > 0 {
				s.MaxTokens = m.DefaultMaxTokens
			}
		}
		if flags.Changed("determinism") {
			s.Determinism, _ = flags.GetInt("determinism") //nolint:errcheck // flag is defined above
		}
		if flags.Changed("max-tokens") {
			s.MaxTokens, _ = flags.GetInt64("max-tokens") //nolint:errcheck // flag is defined above
		}
		if flags.Changed("prompt") {
			s.Prompt, _ = flags.GetString("prompt") //nolint:errcheck // flag is defined above
		}
		if flags.Changed("api-key") {
			s.APIKey, _ = flags.GetString("api-key") //nolint:errcheck // flag is defined above
		}
	})
	if err != nil {
		return err
	}
	s := a.store.View().Active.Settings
	fmt.Fprintf(cmd.OutOrStdout(), "model=%s determinism=%d max_tokens=%d\n", s.Model, s.Determinism, s.MaxTokens)
	return nil
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <message> [text...]",
		Short: "Replace a message's text, or insert a new one next to it",
		Long: `Replace the text of a message given by position, "last", or id prefix.
With --before or --after a new message is inserted instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(runEdit),
	}
	cmd.Flags().Bool("before", false, "Insert a new message before the reference")
	cmd.Flags().Bool("after", false, "Insert a new message after the reference")
	cmd.Flags().String("role", string(chat.RoleUser), "Role of an inserted message")
	return cmd
}

func runEdit(cmd *cobra.Command, a *app, args []string) error {
	text, err := messageArg(args[1:])
	if err != nil {
		return err
	}
	before, _ := cmd.Flags().GetBool("before") //nolint:errcheck // flag is defined above
	after, _ := cmd.Flags().GetBool("after")   //nolint:errcheck // flag is defined above
	role, _ := cmd.Flags().GetString("role")   //nolint:errcheck // flag is defined above

	active := a.store.View().Active
	if (before || after) && args[0] == "0" {
		_, err := a.store.InsertMessage("", true, chat.Role(role), text)
		return err
	}
	id, err := resolveMessage(active, args[0])
	if err != nil {
		return err
	}
	if before || after {
		_, err := a.store.InsertMessage(id, before, chat.Role(role), text)
		return err
	}
	return a.store.EditMessage(id, text)
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <message>",
		Short: "Remove a message",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := resolveMessage(a.store.View().Active, args[0])
			if err != nil {
				return err
			}
			truncate, _ := cmd.Flags().GetBool("truncate") //nolint:errcheck // flag is defined above
			if truncate {
				return a.store.TruncateFrom(id)
			}
			return a.store.DeleteMessage(id)
		}),
	}
	cmd.Flags().Bool("truncate", false, "Also remove every message after it")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the open chat as JSON",
		Long:  `Write the open chat as JSON to a file, to stdout, or with --clipboard to the clipboard.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			data, err := a.store.Export()
			if err != nil {
				return fmt.Errorf("exporting chat: %w", err)
			}
			toClipboard, _ := cmd.Flags().GetBool("clipboard") //nolint:errcheck // flag is defined above
			switch {
			case toClipboard:
				if err := clipboard.WriteAll(string(data)); err != nil {
					return fmt.Errorf("copying to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Copied to clipboard")
			case len(args) == 1:
				if err := os.WriteFile(args[0], data, 0o600); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
			default:
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
			return nil
		}),
	}
	cmd.Flags().Bool("clipboard", false, "Copy to the clipboard")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Open an exported chat as a new draft",
		Long:  `Open an exported chat from a file, from stdin with "-", or with --clipboard from the clipboard.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			fromClipboard, _ := cmd.Flags().GetBool("clipboard") //nolint:errcheck // flag is defined above
			var (
				data []byte
				err  error
			)
			switch {
			case fromClipboard:
				var text string
				text, err = clipboard.ReadAll()
				data = []byte(text)
			case len(args) == 0 || args[0] == "-":
				data, err = io.ReadAll(stdinReader)
			default:
				//nolint:gosec // G304: the user names the file to import.
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading chat: %w", err)
			}
			if err := a.store.Import(data); err != nil {
				return err
			}
			printChat(cmd.OutOrStdout(), a.store.View())
			return nil
		}),
	}
	cmd.Flags().Bool("clipboard", false, "Read from the clipboard")
	return cmd
}
