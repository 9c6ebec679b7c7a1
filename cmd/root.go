// Package cmd provides the command-line interface for projectmd.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/danielolaszy/projectmd/internal/config"
	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/spf13/cobra"

	// Issue tracker backends register themselves
	_ "github.com/danielolaszy/projectmd/internal/github"
	_ "github.com/danielolaszy/projectmd/internal/jira"
)

// DefaultProjectFile is the project file used when --project-file is not given.
const DefaultProjectFile = "project.md"

var rootCmd = &cobra.Command{
	Use:   "projectmd",
	Short: "projectmd pushes markdown task files to an issue tracker",
	Long: `projectmd keeps a project's task list in plain markdown files and pushes
them to an issue tracker such as GitHub or JIRA.

A project file lists the task files and whether each one is already linked to
an issue. Running sync creates issues for new tasks and updates the linked
issues of every task file changed since its last sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logging.SetupLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("project-file", "p", DefaultProjectFile, "Path to the project file")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub token (overrides GITHUB_TOKEN)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func projectFile(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("project-file")
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("project file flag must not be empty")
	}
	return path, nil
}
