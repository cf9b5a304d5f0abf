package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/krishid"
	"github.com/loykin/krishid/internal/guidance"
	"github.com/loykin/krishid/internal/launcher"
	"github.com/loykin/krishid/internal/monitor"
	"github.com/loykin/krishid/internal/probe"
	"github.com/loykin/krishid/pkg/client"
)

var (
	errServiceDown = errors.New("service is not running")
	errStartFailed = errors.New("service could not be started")
)

type checkResult struct {
	Endpoint  string  `json:"endpoint"`
	URL       string  `json:"url"`
	Status    string  `json:"status"`
	Code      int     `json:"code,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

func createCheckCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the service once; exits non-zero when it is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := globalFlags.loadConfig()
			if err != nil {
				return err
			}
			return cmdCheck(cmd.Context(), cmd.OutOrStdout(), cfg.Monitor)
		},
	}
}

func cmdCheck(ctx context.Context, out io.Writer, cfg monitor.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := probe.New(probe.Config{URL: cfg.Endpoint, Timeout: cfg.CheckTimeout, Production: cfg.Production})
	r := c.Probe(ctx)
	res := checkResult{
		Endpoint:  cfg.Endpoint,
		URL:       c.URL(),
		Status:    r.Status.String(),
		Code:      r.Code,
		LatencyMS: float64(r.Latency.Microseconds()) / 1000,
	}
	if r.Err != nil {
		res.Error = r.Err.Error()
	}
	printJSON(out, res)
	if !r.Status.Running() {
		return errServiceDown
	}
	return nil
}

// StartFlags holds flags for the start command.
type StartFlags struct {
	Timeout time.Duration
}

func createStartCommand(globalFlags *GlobalFlags, flags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the service through the strategy chain and wait until it answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			app, err := globalFlags.newApp(ctx, func(cfg *krishid.Config) {
				if flags.Timeout > 0 {
					cfg.Monitor.ReadyTimeout = flags.Timeout
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return cmdStart(ctx, cmd.OutOrStdout(), app)
		},
	}
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "ready timeout (overrides monitor.ready_timeout)")
	return cmd
}

func cmdStart(ctx context.Context, out io.Writer, app *krishid.App) error {
	m := app.Monitor()
	if m.CheckAvailability(ctx) {
		_, _ = fmt.Fprintf(out, "Service already running at %s\n", m.Endpoint())
		return nil
	}
	if !m.AttemptStart(ctx) {
		printGuidance(out, guidance.Manual(m.Endpoint()))
		return errStartFailed
	}
	snap := m.Snapshot()
	_, _ = fmt.Fprintf(out, "Service started via %s at %s\n", snap.LastStrategy, m.Endpoint())
	return nil
}

// StopFlags holds flags for the stop command.
type StopFlags struct {
	Wait  time.Duration
	Local bool
}

func createStopCommand(globalFlags *GlobalFlags, flags *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the service via the management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := globalFlags.loadConfig()
			if err != nil {
				return err
			}
			c := client.New(client.Config{BaseURL: cfg.Monitor.ManagementURL, Timeout: globalFlags.APITimeout})
			var l *launcher.Launcher
			if flags.Local {
				spec, err := cfg.LauncherSpec()
				if err != nil {
					return err
				}
				l = launcher.New(spec, nil)
			}
			return cmdStop(cmd.Context(), cmd.OutOrStdout(), c, l, *flags)
		},
	}
	cmd.Flags().DurationVar(&flags.Wait, "wait", 5*time.Second, "time to wait for a graceful stop")
	cmd.Flags().BoolVar(&flags.Local, "local", false, "stop through the PID file when the management server is unreachable")
	return cmd
}

func cmdStop(ctx context.Context, out io.Writer, c *client.Client, l *launcher.Launcher, flags StopFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.IsReachable(ctx) {
		resp, err := c.Stop(ctx)
		if err != nil {
			return err
		}
		printJSON(out, resp)
		if !resp.Success {
			return fmt.Errorf("stop failed: %s", resp.Error)
		}
		return nil
	}
	if l == nil {
		return fmt.Errorf("management server %s unreachable (use --local to stop via PID file)", c.BaseURL())
	}
	if err := l.Stop(flags.Wait); err != nil {
		return err
	}
	printJSON(out, client.ActionResponse{Success: true, Message: "Service stopped"})
	return nil
}

func createStatusCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service and monitor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := globalFlags.loadConfig()
			if err != nil {
				return err
			}
			c := client.New(client.Config{BaseURL: cfg.Monitor.ManagementURL, Timeout: globalFlags.APITimeout})
			return cmdStatus(cmd.Context(), cmd.OutOrStdout(), c, cfg)
		},
	}
}

// cmdStatus asks the management server; without one it reports what can be
// observed locally.
func cmdStatus(ctx context.Context, out io.Writer, c *client.Client, cfg *krishid.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if st, err := c.Status(ctx); err == nil {
		printJSON(out, st)
		return nil
	}
	spec, err := cfg.LauncherSpec()
	if err != nil {
		return err
	}
	m := monitor.New(cfg.Monitor, monitor.WithGuard(monitor.NewGuard()))
	m.CheckAvailability(ctx)
	snap := m.Snapshot()
	printJSON(out, client.StatusResponse{
		Service:   launcher.New(spec, nil).Status(),
		Monitor:   &snap,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})
	return nil
}

// OpenFlags holds flags for the open command.
type OpenFlags struct {
	NoBrowser bool
}

func createOpenCommand(globalFlags *GlobalFlags, flags *OpenFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the service in the browser, starting it first if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			app, err := globalFlags.newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			var browse func(string) error
			if !flags.NoBrowser {
				browse = func(url string) error {
					_, err := launcher.Detach(defaultBrowserCommand(url), "")
					return err
				}
			}
			return cmdOpen(ctx, cmd.OutOrStdout(), app.Monitor(), browse)
		},
	}
	cmd.Flags().BoolVar(&flags.NoBrowser, "no-browser", false, "print the decision without opening a browser")
	return cmd
}

func cmdOpen(ctx context.Context, out io.Writer, m *monitor.Monitor, browse func(string) error) error {
	d := m.Open(ctx)
	switch d.Action {
	case monitor.ActionOpen:
		if browse != nil {
			if err := browse(d.URL); err != nil {
				return fmt.Errorf("open browser: %w", err)
			}
		}
		_, _ = fmt.Fprintf(out, "Opening %s\n", d.URL)
		return nil
	case monitor.ActionBusy:
		printGuidance(out, guidance.Starting())
		return nil
	default:
		printGuidance(out, guidance.Manual(d.URL))
		return errServiceDown
	}
}
