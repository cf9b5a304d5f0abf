package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/krishid"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// loadConfig reads the config file (optional) and applies flag overrides.
func (f *GlobalFlags) loadConfig() (*krishid.Config, error) {
	cfg, err := krishid.LoadConfig(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if f.APIUrl != "" {
		cfg.Monitor.ManagementURL = f.APIUrl
	}
	return cfg, nil
}

// newApp builds an App for one-shot commands: preferences persist, history
// and the session notice do not.
func (f *GlobalFlags) newApp(ctx context.Context, adjust func(*krishid.Config)) (*krishid.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.History.Enabled = false
	cfg.Monitor.AutoStart = false
	if adjust != nil {
		adjust(cfg)
	}
	return krishid.New(ctx, cfg)
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags, &ServeFlags{}),
		createCheckCommand(globalFlags),
		createStartCommand(globalFlags, &StartFlags{}),
		createStopCommand(globalFlags, &StopFlags{}),
		createStatusCommand(globalFlags),
		createOpenCommand(globalFlags, &OpenFlags{}),
		createLangCommand(globalFlags),
		createTranslateCommand(globalFlags, &TranslateFlags{}),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "krishid",
		Short: "Keeps the KrishiVaani disease-prediction service reachable",
		Long: `krishid watches the disease-prediction service, starts it when it is
down and explains how to start it by hand when automatic attempts fail.

Examples:
  krishid serve --config=krishid.toml   # management server + monitor
  krishid check                         # probe the service once
  krishid open                          # open the service, starting it if needed
  krishid lang set hi                   # switch the interface to Hindi`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "management server URL (overrides monitor.management_url)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "management server request timeout")
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
