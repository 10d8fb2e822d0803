package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/product-classifier/internal/bootstrap"
	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/observability/logging"
)

const serviceName = "train"

// appOpener builds the application. withBroker asks for a best-effort NATS connection.
type appOpener func(ctx context.Context, logFormat string, withBroker bool) (*bootstrap.App, error)

func openApp(ctx context.Context, logFormat string, withBroker bool) (*bootstrap.App, error) {
	cfg := config.Load()
	logger := logging.New(os.Stderr, serviceName, cfg.LogLevel, logFormat)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:        "product-classifier-train",
		SkipBroker:     !withBroker,
		OptionalBroker: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

type cli struct {
	open      appOpener
	logFormat string
	notify    bool
}

func rootCmd(open appOpener) *cobra.Command {
	c := &cli{open: open}

	cmd := &cobra.Command{
		Use:           "train",
		Short:         "Train and manage product category models",
		Long:          `Runs classifier training in-process against the catalog database. Activations are announced on the message broker so running API replicas reload.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "log output format: text or json")
	cmd.PersistentFlags().BoolVar(&c.notify, "notify", os.Getenv("NATS_URL") != "",
		"announce activations on the message broker (default on when NATS_URL is set)")

	cmd.AddCommand(c.runCmd())
	cmd.AddCommand(c.statsCmd())
	cmd.AddCommand(c.activateCmd())
	return cmd
}

// withApp opens the app and closes it after fn returns. The broker is only
// joined for commands that change the active model.
func (c *cli) withApp(activates bool, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	withBroker := activates && c.notify
	app, err := c.open(ctx, c.logFormat, withBroker)
	if err != nil {
		return err
	}
	defer app.Close()
	if activates && app.Events == nil {
		app.Logger.Warn("activation_not_announced", "reason", "no message broker", "notify", c.notify)
	}
	return fn(ctx, app)
}

func (c *cli) runCmd() *cobra.Command {
	var (
		name        string
		description string
		activate    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a model record and train it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(activate, func(ctx context.Context, app *bootstrap.App) error {
				registry := app.NewRegistry(nil)
				model, err := registry.Create(ctx, newStartedModel(name, description))
				if err != nil {
					return err
				}
				trainCtx := ctx
				if timeout := app.Config.TrainTimeout(); timeout > 0 {
					var cancel context.CancelFunc
					trainCtx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				if err := app.NewTrainer(nil).TrainByID(trainCtx, model.ID); err != nil {
					return err
				}
				if activate {
					if _, err := registry.SetActive(context.WithoutCancel(ctx), model.ID); err != nil {
						return err
					}
				}
				trained, err := registry.Get(context.WithoutCancel(ctx), model.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd, trained)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "model name (required)")
	cmd.Flags().StringVar(&description, "description", "", "model description")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the model once training finishes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	var topWords, longestWords int
	cmd := &cobra.Command{
		Use:       "stats <designation|description>",
		Short:     "Print vocabulary statistics of a product text field",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"designation", "description"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(false, func(ctx context.Context, app *bootstrap.App) error {
				report, err := app.NewTextStats().Compute(ctx, args[0], topWords, longestWords)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().IntVar(&topWords, "top", 30, "number of most frequent words")
	cmd.Flags().IntVar(&longestWords, "longest", 5, "number of longest words")
	return cmd
}

func (c *cli) activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <model-id>",
		Short: "Make a finished model the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(true, func(ctx context.Context, app *bootstrap.App) error {
				model, err := app.NewRegistry(nil).SetActive(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, model)
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
