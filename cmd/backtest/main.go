package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"FinSqueeze/internal/di"
	domrepo "FinSqueeze/internal/domain/repository"
	internalrepo "FinSqueeze/internal/repository"
	"FinSqueeze/internal/usecase"
	"FinSqueeze/pkg/config"
	applogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/util"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "finsqueeze",
		Usage: "run consolidation, backtest and confidence analysis offline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "yaml config; engine defaults when empty"},
			&cli.StringFlag{Name: "bars", Usage: "JSON array of bars (\"-\" for stdin)"},
			&cli.BoolFlag{Name: "clickhouse", Usage: "read bars from the configured ClickHouse"},
			&cli.StringFlag{Name: "symbol", Required: true},
			&cli.StringFlag{Name: "tf", Value: string(domrepo.TF1d), Usage: "bar timeframe"},
			&cli.StringFlag{Name: "span", Usage: "history span, e.g. 400d or 6w"},
			&cli.IntFlag{Name: "window", Usage: "bars to analyze"},
			&cli.StringFlag{Name: "until", Usage: "ignore bars after this time (RFC3339, date or unix seconds)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "replay consolidation breakouts over the symbol history",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "years", Usage: "history length; derived from --span when unset"},
				},
				Action: runBacktest,
			},
			{
				Name:  "consolidations",
				Usage: "list consolidation periods in the window",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "min-duration", Usage: "minimum bars per period"},
					&cli.BoolFlag{Name: "ranked", Usage: "order by quality instead of time"},
				},
				Action: runConsolidations,
			},
			{
				Name:   "confidence",
				Usage:  "score the current setup",
				Action: runConfidence,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	engine  *usecase.EngineUseCase
	logger  *applogger.Logger
	cleanup func()
}

func setup(c *cli.Context) (*env, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	l := applogger.NewWriter(os.Stderr)

	var (
		store   domrepo.BarStore
		cleanup = func() {}
	)
	switch {
	case c.Bool("clickhouse"):
		cfg.ClickHouse.Enabled = true
		ch, err := di.ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		store = internalrepo.NewCHBarStore(ch, l)
		cleanup = func() { _ = ch.Close() }
	case c.String("bars") != "":
		s, err := internalrepo.OpenJSONBarStore(c.String("bars"))
		if err != nil {
			return nil, err
		}
		if v := c.String("until"); v != "" {
			t, ok := util.ParseTime(v)
			if !ok {
				return nil, fmt.Errorf("invalid --until %q", v)
			}
			s.Until(t)
		}
		store = s
	default:
		return nil, fmt.Errorf("one of --bars or --clickhouse is required")
	}

	engine := usecase.NewEngineUseCase(usecase.NewBarsUseCase(store), cfg.Engine, nil, nil, l)
	return &env{engine: engine, logger: l, cleanup: cleanup}, nil
}

func windowParams(c *cli.Context) usecase.WindowParams {
	return usecase.WindowParams{
		Symbol:    c.String("symbol"),
		Window:    c.Int("window"),
		Span:      c.String("span"),
		Timeframe: domrepo.Timeframe(c.String("tf")),
	}
}

// spanYears rounds a span up to whole years.
func spanYears(span string) (int, error) {
	if span == "" {
		return 0, nil
	}
	d, err := util.ParseSpan(span)
	if err != nil {
		return 0, err
	}
	return int(math.Ceil(d.Hours() / 24 / 365)), nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func runBacktest(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.cleanup()

	years := c.Int("years")
	if years <= 0 {
		if years, err = spanYears(c.String("span")); err != nil {
			return err
		}
		if years > 0 {
			d, _ := util.ParseSpan(c.String("span"))
			e.logger.Info("backtest years derived from span",
				applogger.String("span", util.FormatSpan(d)), applogger.Int("years", years))
		}
	}

	ctx, stop := signalContext(c)
	defer stop()
	res, err := e.engine.Backtest(ctx, usecase.BacktestParams{
		Symbol:    c.String("symbol"),
		Years:     years,
		Timeframe: domrepo.Timeframe(c.String("tf")),
	})
	if err != nil {
		return err
	}
	e.logger.Info("backtest complete",
		applogger.Symbol(res.Symbol),
		applogger.Int("patterns", res.TotalPatterns),
		applogger.Float64("success_rate", res.SuccessRate))
	return printJSON(res)
}

func runConsolidations(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.cleanup()

	ctx, stop := signalContext(c)
	defer stop()
	res, err := e.engine.Consolidations(ctx, usecase.ConsolidationParams{
		WindowParams: windowParams(c),
		MinDuration:  c.Int("min-duration"),
		Ranked:       c.Bool("ranked"),
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runConfidence(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.cleanup()

	ctx, stop := signalContext(c)
	defer stop()
	res, err := e.engine.Confidence(ctx, windowParams(c))
	if err != nil {
		return err
	}
	for k, v := range res.Missing {
		e.logger.Warn("confidence input missing", applogger.String("input", k), applogger.String("reason", v))
	}
	return printJSON(res)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
