// Package main provides the finish_woltka entry point, invoked by the
// merge job's last line to register results back into Qiita.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/antgonza/qp-woltka/internal/config"
	"github.com/antgonza/qp-woltka/internal/qiita"
	"github.com/antgonza/qp-woltka/internal/task"
)

var rootCmd = &cobra.Command{
	Use:   "finish_woltka <url> <job_id> <output_dir>",
	Short: "Collect woltka results and complete the Qiita job",
	Long:  "finish_woltka checks the merge job's output directory for the expected tables, registers the present ones as artifacts and completes the job.",
	Args:  cobra.ExactArgs(3),
	RunE:  runFinish,
}

var configPath string

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to plugin config JSON (default: $QP_WOLTKA_CONFIG_FP or ~/.qiita_plugins/qp-woltka.json)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFinish(_ *cobra.Command, args []string) error {
	url, jobID, outDir := args[0], args[1], args[2]

	if _, err := uuid.Parse(jobID); err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}

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

	client := qiita.New(url, cfg.ClientID, cfg.ClientSecret, &qiita.Options{
		Timeout:  qiita.DefaultTimeout,
		Insecure: cfg.ServerInsecure,
	})

	return task.Finish(context.Background(), client, jobID, outDir)
}
