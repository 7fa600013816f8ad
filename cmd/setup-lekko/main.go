package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lekkodev/setup-lekko/internal/auth"
	"github.com/lekkodev/setup-lekko/internal/config"
	"github.com/lekkodev/setup-lekko/internal/release"
	"github.com/lekkodev/setup-lekko/internal/setup"
	"github.com/lekkodev/setup-lekko/internal/toolcache"
)

var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:   "setup-lekko",
		Short: "Install the lekko CLI from its GitHub release and add it to the PATH",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(log, cmd); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.PersistentFlags().StringP("version", "v", "", "the lekko version to install (\"latest\" or a semantic version)")
	cmd.PersistentFlags().String("github-token", "", "GitHub access token for the release registry and the artifact download")
	cmd.PersistentFlags().String("apikey", "", "lekko API key, exchanged for a short-lived access token")
	cmd.PersistentFlags().String("tool-cache-dir", "", "tool cache root directory")
	cmd.PersistentFlags().SortFlags = false

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func run(log *logrus.Logger, cmd *cobra.Command) (runErr error) {
	// an unexpected panic must still fail the run with an explicit message
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("internal error: %v", r)
		}
	}()

	log.Infof("starting setup-lekko (version=%s)", version)
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		return err
	}

	// flags take precedence over environment inputs
	if v := must(cmd.PersistentFlags().GetString("version")); v != "" {
		cfg.Version = v
	}
	if t := must(cmd.PersistentFlags().GetString("github-token")); t != "" {
		cfg.GitHubToken = t
	}
	if k := must(cmd.PersistentFlags().GetString("apikey")); k != "" {
		cfg.APIKey = k
	}
	if d := must(cmd.PersistentFlags().GetString("tool-cache-dir")); d != "" {
		cfg.ToolCacheDir = d
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token, err := auth.NewTokenExchanger().ResolveToken(ctx, cfg.APIKey, cfg.GitHubToken)
	if err != nil {
		return err
	}

	s := setup.New(log, toolcache.New(cfg.ToolCacheDir), release.NewLocator(token), auth.DefaultClient(), cfg.GitHubPath)
	installDir, err := s.EnsureInstalled(ctx, cfg.Version, token)
	if err != nil {
		return err
	}
	binPath, err := s.Install(installDir)
	if err != nil {
		return err
	}
	log.Infof("%s installed at %s", release.ToolName, binPath)
	s.VerifyVersion(ctx, binPath)
	return nil
}
