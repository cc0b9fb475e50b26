package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skedtool/sked/internal/core"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected calendar accounts",
	Long: `Manage the provider accounts events are committed to.

An account ties one provider (google, outlook, caldav, local) to a
credential bundle. Commit targets accounts by id; disconnected or
errored accounts stay listed but cannot take commits.`,
	RunE: runAccountsList,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and their sync status",
	RunE:  runAccountsList,
}

var accountsConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a new provider account",
	Long: `Connect a provider account by validating its credentials.

Credential fields come from flags, the active profile, or SKED_*
environment variables, depending on provider:

  google:   --credentials-file and --token-file (run 'sked auth' first)
  outlook:  --client-id, --tenant-id, and --token-file
  caldav:   --server-url, --username, --password
  local:    --path (directory for .ics files)`,
	RunE: runAccountsConnect,
}

var accountsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <account-id>",
	Short: "Disconnect an account",
	Long: `Disconnect an account, revoking its credentials where the provider
supports that. Events already committed through the account stay on the
provider; sked just stops writing through it.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsDisconnect,
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh <account-id>",
	Short: "Re-validate an account's credentials",
	Long: `Re-validate an account's credentials against the provider.

A successful refresh marks the account connected again, including
accounts stuck in the error state. Refreshing a disconnected account
is an error; reconnect it instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsRefresh,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsConnectCmd)
	accountsCmd.AddCommand(accountsDisconnectCmd)
	accountsCmd.AddCommand(accountsRefreshCmd)

	accountsConnectCmd.Flags().String("provider", "", "provider kind: google, outlook, caldav, local")
	accountsConnectCmd.Flags().String("credentials-file", "", "OAuth client config file (google)")
	accountsConnectCmd.Flags().String("token-file", "", "saved OAuth token file (google, outlook)")
	accountsConnectCmd.Flags().String("client-id", "", "Azure app client id (outlook)")
	accountsConnectCmd.Flags().String("tenant-id", "", "Azure tenant id (outlook)")
	accountsConnectCmd.Flags().String("server-url", "", "CalDAV server endpoint (caldav)")
	accountsConnectCmd.Flags().String("username", "", "CalDAV username (caldav)")
	accountsConnectCmd.Flags().String("password", "", "CalDAV app password (caldav)")
	accountsConnectCmd.Flags().String("calendar", "", "target calendar name (google, caldav)")
	accountsConnectCmd.Flags().String("path", "", "directory of .ics files (local)")
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	infos, err := app.Registry.Status(cmd.Context(), app.User)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No accounts connected.")
		fmt.Println("\nConnect one with: sked accounts connect --provider <kind>")
		return nil
	}

	fmt.Println("Connected accounts:")
	fmt.Println("─────────────────────────────────────────────────")
	for _, info := range infos {
		marker := "  "
		switch info.Status {
		case core.StatusConnected:
			marker = "✓ "
		case core.StatusError:
			marker = "✗ "
		case core.StatusDisconnected:
			marker = "○ "
		}
		fmt.Printf("%s%-10s %-12s last sync %s\n", marker, info.Provider, info.Status, info.LastSync.Local().Format("Jan 2 3:04 PM"))
		fmt.Printf("  id: %s\n", info.ID)
	}
	fmt.Println("─────────────────────────────────────────────────")
	return nil
}

func runAccountsConnect(cmd *cobra.Command, args []string) error {
	providerStr, _ := cmd.Flags().GetString("provider")
	if providerStr == "" {
		providerStr = viper.GetString("provider")
	}
	kind, err := core.ParseProviderKind(providerStr)
	if err != nil {
		return err
	}

	creds := credentialsFromFlags(cmd)

	accountID, err := app.Registry.Connect(cmd.Context(), app.User, kind, creds)
	if err != nil {
		return fmt.Errorf("connect %s account: %w", kind, err)
	}

	fmt.Printf("✓ Connected %s account\n", kind)
	fmt.Printf("  id: %s\n", accountID)
	fmt.Printf("\nCommit to it with: sked commit --accounts %s ...\n", accountID)
	return nil
}

func runAccountsDisconnect(cmd *cobra.Command, args []string) error {
	if err := app.Registry.Disconnect(cmd.Context(), app.User, args[0]); err != nil {
		return fmt.Errorf("disconnect account: %w", err)
	}
	fmt.Printf("✓ Account %s disconnected\n", args[0])
	return nil
}

func runAccountsRefresh(cmd *cobra.Command, args []string) error {
	if err := app.Registry.RefreshSync(cmd.Context(), app.User, args[0]); err != nil {
		return fmt.Errorf("refresh account: %w", err)
	}
	fmt.Printf("✓ Account %s refreshed\n", args[0])
	return nil
}

// credentialsFromFlags assembles a credential bundle from flags, falling
// back to the active profile / environment for unset fields.
func credentialsFromFlags(cmd *cobra.Command) core.Credentials {
	get := func(flag, viperKey string) string {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			return v
		}
		return viper.GetString(viperKey)
	}

	return core.Credentials{
		CredentialsFile: expandPath(get("credentials-file", "credentials_file")),
		TokenFile:       expandPath(get("token-file", "token_file")),
		ClientID:        get("client-id", "client_id"),
		TenantID:        get("tenant-id", "tenant_id"),
		ServerURL:       get("server-url", "server_url"),
		Username:        get("username", "username"),
		Password:        get("password", "password"),
		CalendarName:    get("calendar", "calendar"),
		Path:            expandPath(get("path", "path")),
	}
}
