package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"hookdeploy/internal/deploy"
	"hookdeploy/internal/target"
	"hookdeploy/internal/webhook"
	"hookdeploy/pkg/fileutil"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	deployRepo   string
	deployCommit string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <target>",
	Short: "Deploy a target manually",
	Long: `Run one deployment for a configured target without a webhook delivery.

The repository is given as owner/slug and the commit id must exist on the
target's configured branch.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployRepo, "repo", "", "Repository as owner/slug (required)")
	deployCmd.Flags().StringVar(&deployCommit, "commit", "", "Commit id to check out (required)")
	deployCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to targets.yaml configuration file")
	deployCmd.Flags().StringVar(&logFile, "log", "", "Path to log file")
	_ = deployCmd.MarkFlagRequired("repo")
	_ = deployCmd.MarkFlagRequired("commit")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	targetName := args[0]

	// Same resolution order as serve: flag, then .env/environment, then
	// the default search paths.
	_ = godotenv.Load()

	if configFile == "" {
		configFile = os.Getenv("HOOKDEPLOY_CONFIG_FILE")
	}
	if configFile == "" {
		configFile = fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths("targets.yaml"))
		if configFile == "" {
			return fmt.Errorf("configuration file not found")
		}
	}
	if logFile == "" {
		logFile = getEnvOrDefault("HOOKDEPLOY_LOG_FILE", "./deployments.log")
	}

	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	_, targets, err := target.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	t, ok := targets[targetName]
	if !ok {
		return fmt.Errorf("target '%s' not found in %s", targetName, configFile)
	}

	parts := strings.SplitN(deployRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository format '%s', expected owner/slug", deployRepo)
	}
	owner, slug := parts[0], parts[1]

	provider, err := webhook.ByName(t.Provider, logger)
	if err != nil {
		return err
	}

	deployer := deploy.NewDeployer(provider, &deploy.ExecRunner{}, logger)
	deployer.Configure(t.Overrides())
	if t.Username != "" {
		deployer.Authenticate(t.Username, t.Password)
	}

	// A synthetic single-commit payload carrying the deploy marker, so
	// the deployment proceeds under either policy mode.
	payload := &webhook.Payload{
		CanonOrigin: provider.Origin(),
		Commits: []webhook.Commit{
			{ID: deployCommit, Message: deploy.DeployMarker + " manual deployment"},
		},
		Repository: webhook.Repository{
			Owner: owner,
			Name:  slug,
			Slug:  slug,
			URL:   provider.Origin() + "/" + owner + "/" + slug,
		},
	}

	if _, err := deployer.Deploy(context.Background(), payload); err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	fmt.Printf("Deployed %s@%s to %s\n", deployRepo, deployCommit, t.Dir)
	return nil
}
