package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage configuration profiles",
	Long: `Manage configuration profiles for different accounts and defaults.

Profiles let you switch between credential sets, users, and working
hours without retyping flags. Select one with -p or set a default.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileSetDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSetDefault,
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a profile's settings",
	Long: `Edit a profile's settings using flags.

Example:
  sked profile edit work --provider outlook --client-id=...
  sked profile edit home --work-start 8 --work-end 16`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileEdit,
}

// profileSettings maps flag names to config keys a profile can carry.
var profileSettings = map[string]string{
	"user":             "user",
	"state-file":       "state_file",
	"provider":         "provider",
	"credentials-file": "credentials_file",
	"token-file":       "token_file",
	"client-id":        "client_id",
	"tenant-id":        "tenant_id",
	"server-url":       "server_url",
	"username":         "username",
	"password":         "password",
	"calendar":         "calendar",
	"path":             "path",
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileSetDefaultCmd)
	profileCmd.AddCommand(profileEditCmd)

	for _, cmd := range []*cobra.Command{profileAddCmd, profileEditCmd} {
		for flag := range profileSettings {
			cmd.Flags().String(flag, "", "profile setting: "+flag)
		}
		cmd.Flags().Int("days", 0, "number of days to list")
		cmd.Flags().Int("work-start", 0, "working hours start (0-23)")
		cmd.Flags().Int("work-end", 0, "working hours end (0-23)")
	}
}

func runProfileList(cmd *cobra.Command, args []string) error {
	profiles := viper.GetStringMap("profiles")
	defaultProfile := viper.GetString("default_profile")

	if len(profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("\nAdd one with: sked profile add <name> --provider=<kind>")
		return nil
	}

	fmt.Println("Available profiles:")
	fmt.Println("─────────────────────────────────────────────────")

	for name := range profiles {
		marker := "  "
		if name == defaultProfile {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, name)
	}

	fmt.Println("─────────────────────────────────────────────────")
	if defaultProfile != "" {
		fmt.Printf("Default: %s\n", defaultProfile)
	}
	fmt.Println("\nUse 'sked profile show <name>' for details")

	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	var profileName string
	if len(args) > 0 {
		profileName = args[0]
	} else {
		profileName = viper.GetString("default_profile")
		if profileName == "" {
			return fmt.Errorf("no profile specified and no default profile set")
		}
	}

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	settings := viper.GetStringMap(profileKey)

	fmt.Printf("Profile: %s\n", profileName)
	if profileName == viper.GetString("default_profile") {
		fmt.Println("(default)")
	}
	fmt.Println("─────────────────────────────────────────────────")

	fmt.Println("\n👤 Identity:")
	printSetting(settings, "user")
	printSetting(settings, "state_file")

	fmt.Println("\n🔐 Provider credentials:")
	printSetting(settings, "provider")
	printSetting(settings, "credentials_file")
	printSetting(settings, "token_file")
	printSetting(settings, "client_id")
	printSetting(settings, "tenant_id")
	printSetting(settings, "server_url")
	printSetting(settings, "username")
	printSetting(settings, "calendar")
	printSetting(settings, "path")

	fmt.Println("\n📅 Defaults:")
	printSetting(settings, "days")
	printSetting(settings, "work_start")
	printSetting(settings, "work_end")

	fmt.Println()
	return nil
}

func printSetting(settings map[string]interface{}, key string) {
	if val, ok := settings[key]; ok {
		fmt.Printf("  %s: %v\n", key, val)
	}
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' already exists. Use 'sked profile edit %s' to modify it", profileName, profileName)
	}

	profile := profileFromFlags(cmd, make(map[string]interface{}))
	if len(profile) == 0 {
		return fmt.Errorf("no settings given; use flags like --provider or --work-start")
	}

	if err := saveProfileToConfig(profileName, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("✓ Profile '%s' created\n", profileName)
	fmt.Printf("\nUse it with: sked -p %s\n", profileName)
	fmt.Printf("Set as default: sked profile default %s\n", profileName)

	return nil
}

func runProfileSetDefault(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	if err := setDefaultProfileInConfig(profileName); err != nil {
		return fmt.Errorf("failed to set default profile: %w", err)
	}

	fmt.Printf("✓ Default profile set to '%s'\n", profileName)
	return nil
}

func runProfileEdit(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found. Use 'sked profile add %s' to create it", profileName, profileName)
	}

	profile := make(map[string]interface{})
	for k, v := range viper.GetStringMap(profileKey) {
		profile[k] = v
	}

	if len(changedProfileFlags(cmd)) == 0 {
		fmt.Println("No changes specified. Use flags to update settings:")
		fmt.Println("  sked profile edit", profileName, "--work-start 8 --work-end 16")
		return nil
	}
	profile = profileFromFlags(cmd, profile)

	if err := saveProfileToConfig(profileName, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("✓ Profile '%s' updated\n", profileName)
	return nil
}

func changedProfileFlags(cmd *cobra.Command) []string {
	var changed []string
	for flag := range profileSettings {
		if cmd.Flags().Changed(flag) {
			changed = append(changed, flag)
		}
	}
	for _, flag := range []string{"days", "work-start", "work-end"} {
		if cmd.Flags().Changed(flag) {
			changed = append(changed, flag)
		}
	}
	return changed
}

// profileFromFlags overlays the command's changed flags onto an existing
// profile map.
func profileFromFlags(cmd *cobra.Command, profile map[string]interface{}) map[string]interface{} {
	for flag, key := range profileSettings {
		if cmd.Flags().Changed(flag) {
			val, _ := cmd.Flags().GetString(flag)
			profile[key] = val
		}
	}
	if cmd.Flags().Changed("days") {
		val, _ := cmd.Flags().GetInt("days")
		profile["days"] = val
	}
	if cmd.Flags().Changed("work-start") {
		val, _ := cmd.Flags().GetInt("work-start")
		profile["work_start"] = val
	}
	if cmd.Flags().Changed("work-end") {
		val, _ := cmd.Flags().GetInt("work-end")
		profile["work_end"] = val
	}
	return profile
}

// Config file manipulation functions

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sked", "config.yaml")
}

func readConfigFile() (map[string]interface{}, error) {
	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config == nil {
		config = make(map[string]interface{})
	}

	return config, nil
}

func writeConfigFile(config map[string]interface{}) error {
	configPath := getConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

func saveProfileToConfig(name string, profile map[string]interface{}) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}

	profiles, ok := config["profiles"].(map[string]interface{})
	if !ok {
		profiles = make(map[string]interface{})
	}

	profiles[name] = profile
	config["profiles"] = profiles

	return writeConfigFile(config)
}

func setDefaultProfileInConfig(name string) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}

	config["default_profile"] = name

	return writeConfigFile(config)
}
