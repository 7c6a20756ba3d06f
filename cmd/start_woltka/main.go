// Package main provides the start_woltka entry point, invoked by Qiita
// to dispatch a processing job onto the cluster.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/antgonza/qp-woltka/internal/config"
	"github.com/antgonza/qp-woltka/internal/observability"
	"github.com/antgonza/qp-woltka/internal/qiita"
	"github.com/antgonza/qp-woltka/internal/submit"
	"github.com/antgonza/qp-woltka/internal/task"
)

var rootCmd = &cobra.Command{
	Use:   "start_woltka <url> <job_id> <output_dir>",
	Short: "Dispatch a Qiita woltka job to the batch scheduler",
	Long:  "start_woltka classifies the job's command, resolves its artifact, generates the alignment and merge submission scripts and submits them as a dependency chain.",
	Args:  cobra.ExactArgs(3),
	RunE:  runStart,
}

var (
	configPath string
	verbose    bool
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to plugin config JSON (default: $QP_WOLTKA_CONFIG_FP or ~/.qiita_plugins/qp-woltka.json)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStart(_ *cobra.Command, args []string) error {
	url, jobID, outDir := args[0], args[1], args[2]

	if _, err := uuid.Parse(jobID); err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}

	log, err := observability.NewLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	profiles, err := config.LoadProfiles(cfg.Resources)
	if err != nil {
		return err
	}

	scheduler, err := submit.ForFamily(submit.Family(cfg.Scheduler))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	client := qiita.New(url, cfg.ClientID, cfg.ClientSecret, &qiita.Options{
		Timeout:  qiita.DefaultTimeout,
		Insecure: cfg.ServerInsecure,
	})

	result, err := task.Start(context.Background(), client, task.StartOptions{
		URL:         url,
		JobID:       jobID,
		OutDir:      outDir,
		Environment: cfg.Environment,
		Profiles:    profiles,
		Scheduler:   scheduler,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	// Direct commands complete in-process and leave nothing to monitor.
	if result != nil {
		fmt.Fprintf(os.Stdout, "%s, %s\n", result.MainID, result.MergeID)
	}
	return nil
}
