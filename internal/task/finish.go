package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/antgonza/qp-woltka/internal/qiita"
	"github.com/antgonza/qp-woltka/internal/submit"
)

// contactNote trails every missing-table message, matching what the
// Qiita helpdesk expects to see in job errors.
const contactNote = "please contact qiita.help@gmail.com for more information"

// expectedOutput is one result the merge job should have produced.
type expectedOutput struct {
	name  string // artifact name registered with Qiita
	typ   string // artifact type registered with Qiita
	files [][2]string
	// errText overrides the default missing-table message.
	errText string
}

// Finish collects the merge job's outputs from the output directory and
// completes the job: every expected result is checked for, present ones
// are registered as artifacts, missing ones become error lines. The job
// is completed as failed when anything is missing.
func Finish(ctx context.Context, client Orchestrator, jobID, outDir string) error {
	info, err := client.GetJobInfo(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetching job info: %w", err)
	}

	cmd, err := Classify(info.Command)
	if err != nil {
		return err
	}

	if err := client.UpdateJobStep(ctx, jobID, "Step 3 of 4: Checking merged results"); err != nil {
		return fmt.Errorf("updating job step: %w", err)
	}

	var expected []expectedOutput
	switch cmd {
	case CommandWoltka:
		db, err := submit.FindDatabaseFiles(info.Parameter("Database"))
		if err != nil {
			return err
		}
		expected = woltkaOutputs(outDir, db.Coordinates != "")
	case CommandSynDNA:
		expected, err = synDNAOutputs(outDir)
		if err != nil {
			return err
		}
	default:
		// Direct commands complete inside start_woltka and never reach
		// the merge script.
		return fmt.Errorf("%w: %q produces no merge results", ErrUnsupportedCommand, cmd.String())
	}

	// Presence checks are independent stat calls; fan them out.
	present := make([]bool, len(expected))
	g, _ := errgroup.WithContext(ctx)
	for i := range expected {
		i := i
		g.Go(func() error {
			present[i] = len(expected[i].files) > 0
			for _, f := range expected[i].files {
				if _, err := os.Stat(f[0]); err != nil {
					present[i] = false
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var ainfo []qiita.ArtifactInfo
	var errLines []string
	for i, exp := range expected {
		if !present[i] {
			errLines = append(errLines, exp.errText)
			continue
		}
		ainfo = append(ainfo, qiita.NewArtifactInfo(exp.name, exp.typ, exp.files...))
	}

	if err := client.UpdateJobStep(ctx, jobID, "Step 4 of 4: Registering results"); err != nil {
		return fmt.Errorf("updating job step: %w", err)
	}

	if len(errLines) > 0 {
		return client.CompleteJob(ctx, jobID, false, ainfo, strings.Join(errLines, "\n"))
	}
	return client.CompleteJob(ctx, jobID, true, ainfo, "")
}

// woltkaOutputs lists the tables the merge job produces for the
// primary alignment, in registration order.
func woltkaOutputs(outDir string, hasCoords bool) []expectedOutput {
	join := func(name string) string { return filepath.Join(outDir, name) }

	expected := []expectedOutput{{
		name: "Alignment Profile",
		typ:  "BIOM",
		files: [][2]string{
			{join("free.biom"), "biom"},
			{join("alignment.tar"), "log"},
		},
		errText: `Missing files from the "Alignment Profile"; ` + contactNote,
	}}

	for _, rank := range []string{"phylum", "genus", "species"} {
		expected = append(expected, expectedOutput{
			name:    "Taxonomic Predictions - " + rank,
			typ:     "BIOM",
			files:   [][2]string{{join(rank + ".biom"), "biom"}},
			errText: fmt.Sprintf("Table %s was not created, %s", rank, contactNote),
		})
	}

	expected = append(expected, expectedOutput{
		name:    "Per genome Predictions",
		typ:     "BIOM",
		files:   [][2]string{{join("none.biom"), "biom"}},
		errText: "Table none/per-genome was not created, " + contactNote,
	})

	if hasCoords {
		expected = append(expected, expectedOutput{
			name:    "Per gene Predictions",
			typ:     "BIOM",
			files:   [][2]string{{join("per-gene.biom"), "biom"}},
			errText: "Table per-gene was not created, " + contactNote,
		})
	}

	return expected
}

// synDNAOutputs lists the results the SynDNA removal merge produces:
// the per-sample filtered read files and the quantification table. The
// filtered files are discovered by glob since their names derive from
// the input files.
func synDNAOutputs(outDir string) ([]expectedOutput, error) {
	filtered, err := filepath.Glob(filepath.Join(outDir, "*.filtered.fastq.gz"))
	if err != nil {
		return nil, fmt.Errorf("globbing filtered reads: %w", err)
	}

	files := make([][2]string, 0, len(filtered))
	for _, f := range filtered {
		files = append(files, [2]string{f, "raw_forward_seqs"})
	}

	return []expectedOutput{{
		name:    "Filtered files",
		typ:     "per_sample_FASTQ",
		files:   files,
		errText: `Missing files from the "Filtered files"; ` + contactNote,
	}, {
		name:    "SynDNA hits",
		typ:     "BIOM",
		files:   [][2]string{{filepath.Join(outDir, "syndna.biom"), "biom"}},
		errText: "Table syndna was not created, " + contactNote,
	}}, nil
}
