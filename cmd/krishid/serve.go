package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/krishid"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen    string
	Daemonize bool
	PidFile   string
	LogFile   string
}

func createServeCommand(globalFlags *GlobalFlags, flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the management server and the availability monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				globalFlags.ConfigPath = args[0]
			}
			return runServe(globalFlags, flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&flags.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&flags.PidFile, "pidfile", "", "daemon PID file (overrides server.pidfile)")
	cmd.Flags().StringVar(&flags.LogFile, "logfile", "", "daemon log file (overrides log.file.path)")
	return cmd
}

func runServe(globalFlags *GlobalFlags, flags *ServeFlags) error {
	cfg, err := globalFlags.loadConfig()
	if err != nil {
		return err
	}
	if flags.Listen != "" {
		cfg.Server.Listen = flags.Listen
	}
	if flags.PidFile != "" {
		cfg.Server.PidFile = flags.PidFile
	}
	if flags.LogFile != "" {
		cfg.Log.File.Path = flags.LogFile
	}
	if flags.Daemonize {
		return daemonize(cfg.Server.PidFile, cfg.Log.File.Path)
	}

	ctx, stop := signalContext()
	defer stop()
	app, err := krishid.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	fmt.Printf("Starting krishid management server on %s%s\n", cfg.Server.Listen, cfg.Server.BasePath)
	if err := app.Serve(ctx); err != nil {
		return err
	}
	fmt.Println("Shutting down...")
	return nil
}
