package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"github.com/valerio/go-pacer/pacer/app"
	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/backend/headless"
	"github.com/valerio/go-pacer/pacer/backend/terminal"
	"github.com/valerio/go-pacer/pacer/loop"
	"github.com/valerio/go-pacer/pacer/sampler"
	"github.com/valerio/go-pacer/pacer/statsview"
	"github.com/valerio/go-pacer/pacer/telemetry"
	"github.com/valerio/go-pacer/pacer/timing"
)

const shutdownTimeout = 2 * time.Second

func main() {
	cliApp := newCLI()
	cliApp.Action = runPacer

	err := cliApp.Run(os.Args)
	if err != nil {
		slog.Error("Error running pacer", "error", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = "pacer"
	cliApp.Description = "A game loop scheduler with live frame timing statistics"
	cliApp.Usage = "pacer [options]"
	cliApp.Version = "1.0.0"
	cliApp.Flags = []cli.Flag{
		cli.Float64Flag{
			Name:  "tps",
			Usage: "Target simulation steps per second",
			Value: timing.DefaultRate,
		},
		cli.DurationFlag{
			Name:  "max-elapsed",
			Usage: "Largest amount of wall time a single tick may catch up on",
			Value: timing.DefaultMaxElapsed,
		},
		cli.BoolFlag{
			Name:  "variable",
			Usage: "Use a variable time step instead of a fixed one",
		},
		cli.IntFlag{
			Name:  "depth",
			Usage: "Number of frames kept by the timing samplers",
			Value: sampler.DefaultDepth,
		},
		cli.IntFlag{
			Name:  "bodies",
			Usage: "Number of simulated bodies",
			Value: 8,
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a terminal interface, logging progress instead",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to render in headless mode (required for headless)",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "simulated-clock",
			Usage: "Drive headless mode with a simulated clock, running as fast as possible",
		},
		cli.DurationFlag{
			Name:  "simulate-cost",
			Usage: "Busy time added to every simulation step",
		},
		cli.DurationFlag{
			Name:  "render-cost",
			Usage: "Busy time added to every render",
		},
		cli.StringFlag{
			Name:  "telemetry",
			Usage: "Serve frame statistics over HTTP on this address (e.g. localhost:8080)",
		},
		cli.BoolFlag{
			Name:  "statsview",
			Usage: "Launch the runtime stats viewer (requires the statsview build tag)",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	return cliApp
}

// newConfig builds the app configuration from the command line.
func newConfig(c *cli.Context) (app.Config, error) {
	config := app.DefaultConfig()

	tps := c.Float64("tps")
	if tps <= 0 {
		return config, fmt.Errorf("--tps must be positive, got %v", tps)
	}

	config.Loop = loop.Config{
		TargetStep:      timing.StepForRate(tps),
		MaxElapsed:      c.Duration("max-elapsed"),
		IsFixedTimeStep: !c.Bool("variable"),
	}
	if err := config.Loop.Validate(); err != nil {
		return config, err
	}

	config.SamplerDepth = c.Int("depth")
	config.Bodies = c.Int("bodies")
	config.SimulateCost = c.Duration("simulate-cost")
	config.RenderCost = c.Duration("render-cost")

	if c.Bool("debug") {
		config.Backend.LogLevel = slog.LevelDebug
	}

	if c.Bool("headless") {
		if c.Int("frames") <= 0 {
			return config, errors.New("headless mode requires --frames option with a positive value")
		}
	} else if c.Bool("simulated-clock") {
		return config, errors.New("--simulated-clock is only supported in headless mode")
	}

	return config, nil
}

func runPacer(c *cli.Context) error {
	config, err := newConfig(c)
	if err != nil {
		return err
	}

	var be backend.Backend
	if c.Bool("headless") {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: config.Backend.LogLevel,
		})
		slog.SetDefault(slog.New(handler))
		be = headless.New(c.Int("frames"), headless.DefaultProgressInterval)
	} else {
		be = terminal.New()
	}

	var clock timing.Clock = timing.NewSystemClock()
	if c.Bool("simulated-clock") {
		clock = timing.NewManualClock()
		slog.Info("Using simulated clock")
	}

	var opts []app.Option
	if addr := c.String("telemetry"); addr != "" {
		srv := telemetry.New(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Telemetry server stopped", "addr", addr, "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("Telemetry shutdown failed", "error", err)
			}
		}()
		slog.Info("Telemetry available", "stats", "http://"+addr+"/stats", "stream", "ws://"+addr+"/ws")
		opts = append(opts, app.WithPublisher(srv))
	}

	if c.Bool("statsview") {
		if statsview.Available() {
			statsview.Launch(statsview.DefaultAddress)
		} else {
			slog.Warn("Stats viewer requested but pacer was built without the statsview tag")
		}
	}

	pacer, err := app.New(config, clock, be, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return pacer.Run(ctx)
}
