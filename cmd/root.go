package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuadrada/cuadrada/internal/batch"
	"github.com/cuadrada/cuadrada/internal/llm"
	"github.com/cuadrada/cuadrada/internal/output"
	"github.com/cuadrada/cuadrada/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cuadrada",
	Short: "AI-powered academic peer review",
	Long: `cuadrada runs automated peer review of academic papers.
It sends extracted paper text to independent AI reviewer agents,
parses their free-form reviews into structured verdicts, and
aggregates them into an accept/revise/reject decision.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/cuadrada/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cuadrada %s (commit %s, built %s)\n",
			buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "cuadrada")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CUADRADA")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "cuadrada")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "cuadrada.db"))
	viper.SetDefault("anthropic.api_key", "")
	// Model tiers ordered from most to least capable. A reviewer-run walks
	// down this list when the upper tiers are rate limited.
	viper.SetDefault("anthropic.models", []string{
		"claude-opus-4-1-20250805",
		"claude-sonnet-4-20250514",
		"claude-3-7-sonnet-20250219",
		"claude-3-5-haiku-20241022",
	})
	viper.SetDefault("review.reviewers", batch.DefaultReviewers)
	viper.SetDefault("review.structure_check", false)
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.pid_file", filepath.Join(defaultConfigDir, "cuadrada.pid"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is initialized lazily, only when commands actually need
	// it. This lets config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newReviewRunner builds the batch runner from configuration.
func newReviewRunner() *batch.Runner {
	client := llm.NewClient(
		viper.GetString("anthropic.api_key"),
		viper.GetStringSlice("anthropic.models"),
	)
	return batch.NewRunner(client,
		batch.WithReviewers(viper.GetInt("review.reviewers")),
		batch.WithStructureCheck(viper.GetBool("review.structure_check")),
	)
}
