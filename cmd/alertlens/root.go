package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"alertlens/config"
	"alertlens/internal/logger"
	"alertlens/internal/pipeline"
)

const defaultConfigName = "alertlens.yml"

type globalFlags struct {
	configPath string
	model      string
	dataDir    string
	logLevel   string
}

// Execute runs the CLI with SIGINT/SIGTERM cancelling ctx.
func Execute(ctx context.Context, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "alertlens",
		Short: "Correlate security alerts with detection rules and summarize the risk",
		Long: `alertlens matches alerts against a detection rule corpus, groups the
matches by host, user and tactic, and asks a language model for group
summaries and organization-level takeaways.

Each stage reads the previous stage's artifact from the data directory and
writes its own, so stages can be re-run independently.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default alertlens.yml in the working directory or next to the binary)")
	root.PersistentFlags().StringVar(&flags.model, "model", "", "language model identifier (overrides llm.model)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "artifact directory (overrides data_dir)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		stageCmd(flags, pipeline.StageParseRules, "Parse the rule corpus into parsed_rules.jsonl", false),
		stageCmd(flags, pipeline.StageBuildIndex, "Embed parsed rules and save the vector index", false),
		stageCmd(flags, pipeline.StageNormalize, "Coalesce raw alerts into normalized_alerts.jsonl", false),
		stageCmd(flags, pipeline.StageMatch, "Find the nearest rules for every normalized alert", false),
		stageCmd(flags, pipeline.StageGroup, "Group matches by host, user and tactic", false),
		stageCmd(flags, pipeline.StageNest, "Nest groups by tactic, technique and host/user", false),
		stageCmd(flags, pipeline.StageSummarize, "Summarize every group with the language model", true),
		stageCmd(flags, pipeline.StageTakeaways, "Extract organization-level takeaways and render reports", true),
		runCmd(flags),
	)
	return root
}

func stageCmd(flags *globalFlags, stage, short string, takesModel bool) *cobra.Command {
	use := stage
	args := cobra.NoArgs
	if takesModel {
		use += " [model]"
		args = cobra.MaximumNArgs(1)
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), flags, args, stage)
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "Run every stage in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := stagesFrom(from)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), flags, args, stages...)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start at this stage ("+strings.Join(pipeline.Stages, ", ")+")")
	return cmd
}

func stagesFrom(from string) ([]string, error) {
	if from == "" {
		return pipeline.Stages, nil
	}
	for i, s := range pipeline.Stages {
		if s == from {
			return pipeline.Stages[i:], nil
		}
	}
	return nil, fmt.Errorf("unknown stage %q", from)
}

func execute(ctx context.Context, flags *globalFlags, args []string, stages ...string) error {
	configPath := findConfigFile(flags.configPath)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(cfg, flags, args); err != nil {
		return err
	}

	lc := cfg.AlertLens.Logging
	if err := logger.Init(logger.Config{Enabled: lc.Enabled, Level: lc.Level, File: lc.File, Console: lc.Console}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Close()

	logger.Infof("alertlens starting")
	logger.Infof("Config loaded from: %s", configPath)

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Run(ctx, stages...)
}

// applyOverrides folds command-line values over the loaded config. The
// --model flag wins over a positional model argument.
func applyOverrides(cfg *config.Config, flags *globalFlags, args []string) error {
	c := &cfg.AlertLens
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		c.LLM.Model = strings.TrimSpace(args[0])
	}
	if flags.model != "" {
		c.LLM.Model = flags.model
	}
	if flags.dataDir != "" {
		c.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		c.Logging.Level = strings.ToLower(flags.logLevel)
	}
	return config.Validate(cfg)
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}
