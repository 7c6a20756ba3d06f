package task

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/antgonza/qp-woltka/internal/qiita"
)

// DirectRunner executes the direct-path commands (cell counts, RNA copy
// counts). These never touch the array machinery: the handler runs
// synchronously and the job terminates right after.
type DirectRunner interface {
	Run(ctx context.Context, cmd Command, info *qiita.JobInfo, outDir string) ([]qiita.ArtifactInfo, error)
}

// CalculatorRunner shells out to the external calculator binaries
// shipped with the pipeline environment.
type CalculatorRunner struct {
	CellCountsBin    string
	RNACopyCountsBin string
}

// NewCalculatorRunner returns a runner using the calculators on PATH.
func NewCalculatorRunner() *CalculatorRunner {
	return &CalculatorRunner{
		CellCountsBin:    "calc_cell_counts",
		RNACopyCountsBin: "calc_rna_copy_counts",
	}
}

func (r *CalculatorRunner) Run(ctx context.Context, cmd Command, info *qiita.JobInfo, outDir string) ([]qiita.ArtifactInfo, error) {
	var bin, name string
	switch cmd {
	case CommandCellCounts:
		bin, name = r.CellCountsBin, "Cell counts"
	case CommandRNACopyCounts:
		bin, name = r.RNACopyCountsBin, "RNA copy counts"
	default:
		return nil, fmt.Errorf("%w: %q is not a direct command", ErrUnsupportedCommand, cmd.String())
	}

	output := filepath.Join(outDir, strings.ReplaceAll(strings.ToLower(name), " ", "_")+".biom")
	args := []string{
		"--input", info.Parameter("input"),
		"--output", output,
	}
	if db := info.Parameter("Database"); db != "" {
		args = append(args, "--database", db)
	}

	c := exec.CommandContext(ctx, bin, args...)
	if out, err := c.CombinedOutput(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(string(out)))
		}
		return nil, fmt.Errorf("%s failed: %w", bin, err)
	}

	return []qiita.ArtifactInfo{
		qiita.NewArtifactInfo(name, "BIOM", [2]string{output, "biom"}),
	}, nil
}

// runDirect executes a direct command and completes the job in the same
// invocation, success or not.
func runDirect(ctx context.Context, client Orchestrator, cmd Command, info *qiita.JobInfo, opts StartOptions) error {
	runner := opts.Runner
	if runner == nil {
		runner = NewCalculatorRunner()
	}

	ainfo, err := runner.Run(ctx, cmd, info, opts.OutDir)
	if err != nil {
		_ = client.CompleteJob(ctx, opts.JobID, false, nil, err.Error())
		return err
	}
	return client.CompleteJob(ctx, opts.JobID, true, ainfo, "")
}
