package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesm/github-issue-archive/config"
	"github.com/wesm/github-issue-archive/internal/api"
	"github.com/wesm/github-issue-archive/internal/archive"
	"github.com/wesm/github-issue-archive/internal/db"
	"github.com/wesm/github-issue-archive/internal/render"
	"github.com/wesm/github-issue-archive/internal/sync"
)

func (a *app) syncCommand() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch issues from GitHub into the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			repos := cfg.Repositories
			if repo != "" {
				if _, _, err := sync.ParseRepositoryString(repo); err != nil {
					return err
				}
				repos = []string{repo}
			}
			return a.runSync(cmd.Context(), cfg, repos)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Sync only this repository (format: owner/name)")
	return cmd
}

func (a *app) renderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the archive page from the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return a.runRender(cmd.Context(), cfg)
		},
	}
}

func (a *app) autoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Sync every configured repository, then render",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := a.runSync(cmd.Context(), cfg, cfg.Repositories); err != nil {
				return err
			}
			return a.runRender(cmd.Context(), cfg)
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the GitHub token and summarize the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return a.runStatus(cmd.Context(), cfg)
		},
	}
}

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file and template assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.CreateDefaultConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to create default configuration: %w", err)
			}
			if created {
				a.logger.Infof("Created default configuration at %s", a.configPath)
			} else {
				a.logger.Infof("Configuration %s already exists", a.configPath)
			}

			templateDir, err := config.TemplateDirFor(a.configPath)
			if err != nil {
				return err
			}
			written, err := render.WriteDefaultAssets(templateDir)
			if err != nil {
				return fmt.Errorf("failed to write template assets: %w", err)
			}
			for _, name := range written {
				a.logger.Infof("Wrote template %s", name)
			}
			return nil
		},
	}
}

func (a *app) addRepoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-repo owner/name",
		Short: "Add a repository to the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := config.AddRepository(a.configPath, args[0])
			if err != nil {
				return err
			}
			if changed {
				a.logger.Infof("Added repository %s to configuration", args[0])
			} else {
				a.logger.Infof("Repository %s already exists in configuration", args[0])
			}
			return nil
		},
	}
}

func (a *app) runSync(ctx context.Context, cfg *config.Config, repos []string) error {
	database, err := db.New(cfg.DatabasePath, a.logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Initialize(ctx); err != nil {
		return err
	}

	var opts []api.ClientOption
	if cfg.APIBaseURL != "" {
		opts = append(opts, api.WithBaseURL(cfg.APIBaseURL))
	}
	client := api.NewGitHubClient(cfg.GitHubToken, a.logger, opts...)

	report := sync.New(database, client, a.logger).SyncAll(ctx, repos)
	for _, res := range report.Incomplete() {
		a.logger.WithError(res.FetchErr).Warnf("Repository %s was only partially fetched", res.Repository)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d repositories failed to sync", len(failed), len(report.Results))
	}
	return nil
}

func (a *app) runRender(ctx context.Context, cfg *config.Config) error {
	renderer := render.NewRenderer(cfg.TemplateDir, cfg.OutputPath, a.logger)
	if err := renderer.CheckPreconditions(cfg.DatabasePath); err != nil {
		return err
	}

	database, err := db.OpenReadOnly(ctx, cfg.DatabasePath, a.logger)
	if err != nil {
		return err
	}
	defer database.Close()

	snapshot, err := archive.NewAssembler(database, a.logger).Assemble(ctx)
	if err != nil {
		return err
	}

	path, err := renderer.Render(snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, path)
	return nil
}

func (a *app) runStatus(ctx context.Context, cfg *config.Config) error {
	info, err := api.NewGraphQLClient(cfg.GitHubToken, cfg.GraphQLURL, a.logger).CheckAccess(ctx)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"login":     info.Login,
		"remaining": info.Remaining,
		"limit":     info.Limit,
		"reset_at":  info.ResetAt,
	}).Info("GitHub token is valid")

	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		a.logger.Infof("No database at %s yet, run sync first", cfg.DatabasePath)
		return nil
	}

	database, err := db.OpenReadOnly(ctx, cfg.DatabasePath, a.logger)
	if err != nil {
		return err
	}
	defer database.Close()

	repos, err := database.CountRepositories(ctx)
	if err != nil {
		return err
	}
	issues, err := database.CountIssues(ctx)
	if err != nil {
		return err
	}
	labels, err := database.CountLabels(ctx)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"path":         cfg.DatabasePath,
		"repositories": repos,
		"issues":       issues,
		"labels":       labels,
	}).Info("Local archive")
	return nil
}
