package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/state"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <name>",
		Short: "Log in to the chat server",
		Long: `Log in with a password proof; the password itself never leaves this
machine. Drafts in progress are kept and become yours.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(runLogin),
	}
}

func runLogin(cmd *cobra.Command, a *app, args []string) error {
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	if err := a.store.Login(cmd.Context(), args[0], password); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	v := a.store.View()
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d saved chats)\n", v.User.DisplayName(), len(v.Chats))
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current login",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.store.View().User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err := a.store.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logging out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runRegister),
	}
	cmd.Flags().String("api-key", "", "Default API key for the generation service")
	return cmd
}

func runRegister(cmd *cobra.Command, a *app, args []string) error {
	name := args[0]
	if err := models.ValidateName(name); err != nil {
		return err
	}
	apiKey, err := cmd.Flags().GetString("api-key")
	if err != nil {
		return fmt.Errorf("getting api-key flag: %w", err)
	}
	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	if err := models.ValidatePassword(password); err != nil {
		return err
	}
	if err := a.store.CreateAccount(cmd.Context(), name, password, apiKey); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created account %s\n", name)
	return nil
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show or change the current account",
		Long: `Without flags, show the current account. With flags, change the name,
password, or default API key.`,
		Args: cobra.NoArgs,
		RunE: withApp(runAccount),
	}
	cmd.Flags().String("name", "", "New account name")
	cmd.Flags().Bool("password", false, "Prompt for a new password")
	cmd.Flags().String("api-key", "", "New default API key")
	return cmd
}

func runAccount(cmd *cobra.Command, a *app, _ []string) error {
	out := cmd.OutOrStdout()
	flags := cmd.Flags()

	var change state.AccountChange
	changed := false
	if flags.Changed("name") {
		change.Name, _ = flags.GetString("name") //nolint:errcheck // flag is defined above
		if err := models.ValidateName(change.Name); err != nil {
			return err
		}
		changed = true
	}
	if flags.Changed("api-key") {
		key, _ := flags.GetString("api-key") //nolint:errcheck // flag is defined above
		change.APIKey = &key
		changed = true
	}
	if flags.Changed("password") {
		password, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := models.ValidatePassword(password); err != nil {
			return err
		}
		change.Password = password
		changed = true
	}

	if changed {
		if err := a.store.EditAccount(cmd.Context(), change); err != nil {
			return fmt.Errorf("updating account: %w", err)
		}
	}

	v := a.store.View()
	if v.User == nil {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	fmt.Fprintf(out, "Name:    %s\n", v.User.DisplayName())
	fmt.Fprintf(out, "ID:      %s\n", v.User.ID)
	key := "(none)"
	if v.User.APIKey != "" {
		key = maskKey(v.User.APIKey)
	}
	fmt.Fprintf(out, "API key: %s\n", key)
	return nil
}

// maskKey hides all but the last four characters.
func maskKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return "****"
	}
	return "****" + key[len(key)-visible:]
}
