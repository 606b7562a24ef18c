package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/cluequiz/internal/config"
	"github.com/playperu/cluequiz/internal/console"
	"github.com/playperu/cluequiz/internal/handler/health"
	"github.com/playperu/cluequiz/internal/importer"
	"github.com/playperu/cluequiz/internal/server"
)

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluequiz",
		Short: "Guess who a profile is from as few clues as possible.",
		Long: "Guess who a profile is from as few clues as possible.\n\n" +
			"Settings are read from the environment (LOG_LEVEL, DB_PATH, DATA_DIR, DATA_URL,\n" +
			"DEFAULT_LOCALE, MIN_PLAYERS, MAX_PLAYERS, CLUES_PER_PROFILE, SAVE_DEBOUNCE, ...).",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.CompletionOptions.HiddenDefaultCmd = true

	cmd.AddCommand(
		newPlayCmd(),
		newSessionsCmd(),
		newServeDataCmd(),
		newImportCmd(),
	)

	normalize(cmd)
	return cmd
}

// normalize lets flags be spelled with underscores as well as dashes.
func normalize(cmd *cobra.Command) {
	cmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	for _, c := range cmd.Commands() {
		normalize(c)
	}
}

func newPlayCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			loader := a.loader()
			store := a.newStore(loader)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.SaveTimeout)
				defer cancel()
				if err := store.Close(closeCtx); err != nil {
					a.logger.Error("saving session on exit failed", "error", err)
				}
			}()

			c := console.New(store, loader, a.cfg.DefaultLocale, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
			if resume != "" {
				c.Exec(ctx, "load "+resume)
			}
			return c.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "id of a saved game to continue")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved games, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.sessions.List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tROUND\tPLAYERS\tSAVED")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
					s.ID, s.Status, s.Round, s.Rounds, strings.Join(s.Players, ", "), s.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of games to list")
	return cmd
}

func newServeDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-data",
		Short: "Serve the profile data directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			loader := a.loader()
			srv := server.New(a.cfg.HTTPAddr, a.logger, a.cfg.DataDir, map[string]health.Checker{
				"sessions": a.sessions,
				"profiles": health.CheckFunc(func(ctx context.Context) error {
					_, err := loader.Manifest(ctx)
					return err
				}),
			})

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.logger.Info("starting http server", "addr", a.cfg.HTTPAddr, "data_dir", a.cfg.DataDir)
				return srv.Run(gctx)
			})

			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down http server")
				return srv.Shutdown(context.Background())
			})

			return g.Wait()
		},
	}
}

func newImportCmd() *cobra.Command {
	var (
		u         importer.Updater
		languages []string
		manifest  string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append profiles from markdown files to the category data files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			u.Logger = newLogger(cfg, cmd.ErrOrStderr())
			if u.JSONDir == "" {
				u.JSONDir = cfg.DataDir
			}

			results := u.UpdateAll(languages)
			total := 0
			for _, lang := range languages {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d profiles added\n", lang, results[lang])
				total += results[lang]
			}

			if manifest != "" {
				if err := u.UpdateManifest(manifest, languages); err != nil {
					return err
				}
			}
			if total == 0 {
				return errors.New("no profiles imported")
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&u.Category, "category", "", "category name, for example Movies")
	fs.StringVar(&u.IDPrefix, "id-prefix", "", "profile id prefix (default: lowercase category)")
	fs.StringVar(&u.MarkdownDir, "markdown-dir", "", "directory holding the markdown files")
	fs.StringVar(&u.JSONDir, "json-dir", "", "root of the category data files (default: DATA_DIR)")
	fs.IntVar(&u.StartID, "start-id", 1, "number of the first imported profile")
	fs.StringSliceVar(&languages, "languages", importer.DefaultLanguages, "languages to import")
	fs.StringVar(&manifest, "manifest", "", "manifest.json whose profile counts should be updated")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("markdown-dir")
	return cmd
}
