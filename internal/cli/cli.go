// Package cli implements the ledgertree command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/export"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/internal/app"
	"github.com/zms-erp/ledgertree/models"
)

// NewRootCommand builds the ledgertree command tree
func NewRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "ledgertree",
		Short: "Chart of accounts trees over the ERP backend",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(
		newServeCommand(),
		newTreeCommand(),
		newSearchCommand(),
		newExportCommand(),
		newRefreshCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv loads path when it exists. Variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	provider, err := config.NewProvider()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, provider, app.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return a.Serve(ctx)
			})
		},
	}
}

func newTreeCommand() *cobra.Command {
	var (
		query     string
		expandAll bool
	)
	cmd := &cobra.Command{
		Use:   "tree <category>",
		Short: "Print the account tree of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Service.Tree(ctx, models.Category(args[0]), query)
				if err != nil {
					return err
				}
				state := hierarchy.NewExpandState()
				if expandAll {
					state.ExpandAll(view.Roots)
				} else {
					for _, root := range view.Roots {
						state.Toggle(hierarchy.NodeKey(root))
					}
				}
				if view.Stale {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: backend unavailable, showing last snapshot")
				}
				fmt.Fprint(cmd.OutOrStdout(), hierarchy.RenderText(hierarchy.Render(view.Roots, state)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "keep only roots matching this text")
	cmd.Flags().BoolVarP(&expandAll, "all", "a", false, "expand every level")
	return cmd
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search leaf accounts across every category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				results, err := a.Service.SearchLedger(ctx, args[0])
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.ID, r.Category, r.Label)
				}
				return nil
			})
		},
	}
}

func newExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <category>",
		Short: "Write the account tree of a category to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				category := models.Category(args[0])
				def, err := a.Service.Category(category)
				if err != nil {
					return err
				}
				view, err := a.Service.Tree(ctx, category, "")
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = string(category) + ".xlsx"
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := export.WriteTree(f, def, view.Roots); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <category>.xlsx)")
	return cmd
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refetch every category and store a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Service.RefreshAll(ctx)
			})
		},
	}
}
