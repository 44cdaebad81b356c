package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mikelady/commitcast/internal/bot"
	"github.com/mikelady/commitcast/internal/web"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "commitcast",
		Usage:   "Turn recent commits into reviewed social posts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			reposCommand(),
			recentCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the review API and watch repositories for new commits",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig(ctx, c.String("config"))
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}

			server := web.NewServer(":"+strconv.Itoa(cfg.Server.Port), web.NewRouter(a.commands, logger))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info().Str("addr", server.Addr()).Strs("repos", cfg.Repos).Msg("Starting API server")
				return server.Start()
			})
			if a.watcher != nil {
				g.Go(func() error {
					err := a.watcher.Run(gctx)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info().Msg("Shutting down")
				return server.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func reposCommand() *cli.Command {
	return &cli.Command{
		Name:  "repos",
		Usage: "List repositories owned by a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Account whose repositories are listed; empty lists the token owner's",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c.Context, c.String("config"))
			if err != nil {
				return err
			}
			source, err := buildCommitSource(cfg, logger)
			if err != nil {
				return err
			}

			repos, err := source.ListRepos(c.Context, c.String("username"))
			if err != nil {
				return err
			}
			for _, repo := range repos {
				fmt.Fprintln(c.App.Writer, repo)
			}
			return nil
		},
	}
}

func recentCommand() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Print the most recent commits of the configured repositories",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Commits fetched per repository; defaults to poll.commit_count",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c.Context, c.String("config"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(cfg.Repos) == 0 {
				return errors.New("no repositories configured")
			}

			count := c.Int("count")
			if count < 1 {
				count = cfg.Poll.CommitCount
			}

			source, err := buildCommitSource(cfg, logger)
			if err != nil {
				return err
			}
			commits, err := source.FetchRecent(c.Context, cfg.Repos, count)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, bot.RenderCommitList(commits))
			return nil
		},
	}
}
