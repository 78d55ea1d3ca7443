package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"codeberg.org/mutker/rampctl/internal/actuator"
	"codeberg.org/mutker/rampctl/internal/config"
	"codeberg.org/mutker/rampctl/internal/console"
	"codeberg.org/mutker/rampctl/internal/control"
	"codeberg.org/mutker/rampctl/internal/host"
	"codeberg.org/mutker/rampctl/internal/lifecycle"
	"codeberg.org/mutker/rampctl/internal/logger"
	"codeberg.org/mutker/rampctl/internal/metrics"
	"codeberg.org/mutker/rampctl/internal/pid"
	"codeberg.org/mutker/rampctl/internal/ramp"
	"codeberg.org/mutker/rampctl/internal/shutdown"
	"codeberg.org/mutker/rampctl/internal/store"
	"codeberg.org/mutker/rampctl/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error().Err(err).Msg("rampctl failed")
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rampctl",
		Short: "Ramp a motor controller to an operator-entered velocity",
		Long: `rampctl prompts for a target velocity in RPM, ramps the commanded ` +
			`velocity toward it every control period and logs the measured ` +
			`velocity to a CSV file. On SIGINT or SIGTERM the log is flushed, ` +
			`the post-processing command runs and rampctl exits with the ` +
			`signal number. SIGUSR1 toggles control.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	cmd.AddCommand(newSessionsCmd())

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel.String(), logger.IsService())
	log := logger.Default()
	log.Debug().Interface("config", cfg).Msg("Config loaded")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := pid.Write(cfg.PIDDir); err != nil {
		return err
	}
	atexit.Register(func() {
		if err := pid.Remove(cfg.PIDDir); err != nil {
			log.Warn().Err(err).Msg("Failed to remove pid file")
		}
	})

	samples, err := telemetry.Create(cfg.Telemetry.File)
	if err != nil {
		return err
	}
	atexit.Register(func() {
		if err := samples.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close telemetry log")
		}
	})

	recorder, err := store.NewService(cfg.Store, log)
	if err != nil {
		return err
	}
	atexit.Register(func() {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close session store")
		}
	})

	m := metrics.New()
	if cfg.Metrics.Address != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	device, err := actuator.Open(cfg.Actuator, log)
	if err != nil {
		return err
	}
	atexit.Register(func() {
		if err := device.SetNeutral(); err != nil {
			log.Warn().Err(err).Msg("Failed to command neutral on exit")
		}
		if err := device.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close actuator")
		}
	})

	finalizer, err := shutdown.New(cfg.Shutdown, log, []shutdown.Flusher{samples, recorder})
	if err != nil {
		return err
	}
	finalizer.Install(ctx)

	prompter := console.NewPrompter(os.Stdin, os.Stdout, log)
	go prompter.Run(ctx)

	coordinator := control.NewCoordinator(device, ramp.New(cfg.Ramp), cfg.Actuator.Slot, samples, log,
		control.WithRecorder(recorder),
		control.WithObserver(m),
		control.WithStatus(console.NewStatus(os.Stdout, !logger.IsService())),
	)
	adapter := lifecycle.New(device, cfg.Actuator.Gains, coordinator, prompter, log,
		lifecycle.WithObserver(m),
	)

	toggle := host.NewToggle(cfg.StartEnabled, log)
	toggle.WatchSignal(ctx)

	return host.New(cfg.Interval, adapter, toggle, finalizer, log).Run(ctx)
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [session-id]",
		Short: "List recorded sessions, or print the snapshots of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel.String(), true)

			cfg.Store.Enabled = true
			recorder, err := store.NewService(cfg.Store, logger.Default())
			if err != nil {
				return err
			}
			defer recorder.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				sessions, err := recorder.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(out, "%s\t%s\t%.2f\n", s.ID, s.StartedAt.Format(time.RFC3339), s.TargetRPM)
				}
				return nil
			}

			snapshots, err := recorder.Samples(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, s := range snapshots {
				fmt.Fprintf(out, "%d,%.3f,%.2f,%.2f,%.2f\n", s.Seq, s.Elapsed, s.TargetRPM, s.CommandedRPM, s.MeasuredRPM)
			}
			return nil
		},
	}
}
