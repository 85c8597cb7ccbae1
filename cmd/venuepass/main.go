package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venuepass/internal/app"
	"venuepass/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "venuepass",
		Short: "Venue event registration client",
		Long: `venuepass shows venue events and registers you for them.
- Status: each event is past, ongoing, upcoming (registration open), registration_not_started or registration_closed.
- Countdown: time left until registration closes, ticking once per second with 'event watch'.
- Registration: enter a phone number; known numbers are registered right away, new numbers are asked for name and email.
- Backend: 'backend serve' runs a local API with the same contract, seeded from a YAML fixture file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPersistentFlags(root)
	root.AddCommand(eventCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(registerCmd())
	root.AddCommand(backendCmd())
	root.AddCommand(configCmd())
	return root
}

func initConfig() {
	viper.SetEnvPrefix("VENUEPASS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringP("config-dir", "c", ".", "directory holding "+config.FileName)
	flags.String("base-url", "", "API base url (overrides api.base_url)")
	flags.Duration("timeout", 0, "HTTP client timeout (overrides api.timeout)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config-dir", flags.Lookup("config-dir"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("api.timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
}

// loadConfig reads venuepass.yml (defaults when absent) and applies flag and
// VENUEPASS_* environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config-dir"))
	if err != nil {
		return nil, err
	}
	if viper.IsSet("api.base_url") && viper.GetString("api.base_url") != "" {
		cfg.API.BaseURL = viper.GetString("api.base_url")
	}
	if viper.IsSet("api.timeout") && viper.GetDuration("api.timeout") > 0 {
		cfg.API.Timeout = viper.GetDuration("api.timeout")
	}
	if viper.IsSet("log.level") && viper.GetString("log.level") != "" {
		cfg.Log.Level = viper.GetString("log.level")
	}
	if viper.IsSet("countdown.interval") {
		cfg.Countdown.Interval = viper.GetDuration("countdown.interval")
	}
	if viper.IsSet("listing.per_page") {
		cfg.Listing.PerPage = viper.GetInt("listing.per_page")
	}
	for key, dst := range map[string]*string{
		"backend.addr":      &cfg.Backend.Addr,
		"backend.base_path": &cfg.Backend.BasePath,
		"backend.workspace": &cfg.Backend.Workspace,
	} {
		if viper.IsSet(key) && viper.GetString(key) != "" {
			*dst = viper.GetString(key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return fn(cmd.Context(), a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
