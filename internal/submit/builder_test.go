package submit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgonza/qp-woltka/internal/config"
)

// newDatabase lays out a fake bowtie2 database with its companions.
func newDatabase(t *testing.T, withCoords bool) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "WoLmin")
	for _, name := range []string{"WoLmin.1.bt2", "WoLmin.2.bt2", "WoLmin.tax"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	if withCoords {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "WoLmin.coords"), []byte("x"), 0644))
	}
	return db
}

func newRequest(t *testing.T, family Family, db string) Request {
	t.Helper()
	return Request{
		JobID:       "my-job",
		URL:         "https://qiita.test",
		OutputDir:   t.TempDir(),
		Database:    db,
		Environment: "source activate qp-woltka",
		PrepPath:    "/proj/prep/55_prep.txt",
		Files:       []string{"/proj/run1/S1_L001", "/proj/run1/S2_L001"},
		Profiles:    config.DefaultProfiles(),
		Family:      family,
	}
}

func TestFindDatabaseFiles(t *testing.T) {
	db := newDatabase(t, true)
	got, err := FindDatabaseFiles(db)
	require.NoError(t, err)
	assert.Equal(t, db+".tax", got.Taxonomy)
	assert.Equal(t, db+".coords", got.Coordinates)
}

func TestFindDatabaseFilesNoCoords(t *testing.T) {
	db := newDatabase(t, false)
	got, err := FindDatabaseFiles(db)
	require.NoError(t, err)
	assert.Empty(t, got.Coordinates)
}

func TestFindDatabaseFilesMissingTaxonomy(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "WoLmin")
	require.NoError(t, os.WriteFile(db+".1.bt2", []byte("x"), 0644))

	_, err := FindDatabaseFiles(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".tax")
}

func TestWoltkaToArrayTorque(t *testing.T) {
	req := newRequest(t, FamilyTorque, newDatabase(t, true))

	mainPath, mergePath, err := WoltkaToArray(req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(req.OutputDir, "my-job.qsub"), mainPath)
	assert.Equal(t, filepath.Join(req.OutputDir, "my-job.merge.qsub"), mergePath)

	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	script := string(main)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "#PBS -N my-job")
	assert.Contains(t, script, "#PBS -t 1-2%8")
	assert.Contains(t, script, "#PBS -l nodes=1:ppn=8")
	assert.Contains(t, script, "offset=${PBS_ARRAYID}")
	assert.Contains(t, script, "source activate qp-woltka")
	assert.Contains(t, script, "cat $infile0*.fastq.gz > $outfile0.fastq.gz")
	assert.Contains(t, script, "bowtie2 -p 8 -x "+req.Database)
	assert.Contains(t, script, "--rank phylum,genus,species,free,none")
	assert.Contains(t, script, "woltka-per-gene")
	assert.Contains(t, script, "xz -9 -T8 -c $outfile0.sam")
	// one file per task, so no offset rescaling
	assert.NotContains(t, script, "offset=$(( $offset *")

	details, err := os.ReadFile(filepath.Join(req.OutputDir, "my-job.array-details"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(details)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "/proj/run1/S1_L001\t"+req.OutputDir+"/S1_L001.sam", lines[0])

	merge, err := os.ReadFile(mergePath)
	require.NoError(t, err)
	mergeScript := string(merge)
	assert.Contains(t, mergeScript, "#PBS -N merge-my-job")
	// five rank merges plus per-gene, all backgrounded
	assert.Equal(t, 6, strings.Count(mergeScript, "woltka_merge"))
	assert.Contains(t, mergeScript, `--name per-gene --glob "*.woltka-per-gene" --rename &`)
	assert.Contains(t, mergeScript, "wait")
	assert.Contains(t, mergeScript, "tar -cvf alignment.tar *.sam.xz")
	assert.Contains(t, mergeScript, "finish_woltka https://qiita.test my-job "+req.OutputDir)
}

func TestWoltkaToArraySlurm(t *testing.T) {
	req := newRequest(t, FamilySlurm, newDatabase(t, false))

	mainPath, mergePath, err := WoltkaToArray(req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(req.OutputDir, "my-job.slurm"), mainPath)

	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	script := string(main)
	assert.Contains(t, script, "#SBATCH --array 1-2%8")
	assert.Contains(t, script, "offset=${SLURM_ARRAY_TASK_ID}")
	assert.NotContains(t, script, "#PBS")

	merge, err := os.ReadFile(mergePath)
	require.NoError(t, err)
	mergeScript := string(merge)
	// no coords: --rename folds into the last rank merge
	assert.Contains(t, mergeScript, `--glob "*.woltka-taxa/none.biom" --rename &`)
	assert.NotContains(t, mergeScript, "per-gene")
}

func TestToArrayPacksLargeInputs(t *testing.T) {
	req := newRequest(t, FamilyTorque, newDatabase(t, false))
	req.Files = nil
	for i := 0; i < 1500; i++ {
		req.Files = append(req.Files, fmt.Sprintf("/proj/run1/S%04d", i))
	}

	mainPath, _, err := WoltkaToArray(req)
	require.NoError(t, err)

	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	script := string(main)

	// 1500 files pack two per task into 750 tasks
	assert.Contains(t, script, "#PBS -t 1-750%8")
	assert.Contains(t, script, "offset=$(( $offset * 2 ))")
	// reversed offsets: step 1 before step 0
	i1 := strings.Index(script, "step=$(( $offset - 1 ))")
	i0 := strings.Index(script, "step=$(( $offset - 0 ))")
	require.Positive(t, i1)
	assert.Less(t, i1, i0)
	// the last task must not overstep the details file
	assert.Contains(t, script, "if [[ $step -gt 1500 ]]; then exit 0; fi")
}

func TestToArrayNoFiles(t *testing.T) {
	req := newRequest(t, FamilyTorque, newDatabase(t, false))
	req.Files = nil

	_, _, err := WoltkaToArray(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")
}

func TestSynDNAToArray(t *testing.T) {
	req := newRequest(t, FamilyTorque, filepath.Join(t.TempDir(), "syndna"))
	req.Files = []string{"/proj/run1/S1_R1.fastq.gz", "/proj/run1/S2_R1.fastq.gz"}

	mainPath, mergePath, err := SynDNAToArray(req)
	require.NoError(t, err)

	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	script := string(main)
	assert.Contains(t, script, "-q $infile0 ")
	assert.Contains(t, script, "--un-gz $outfile0.filtered.fastq.gz")
	assert.NotContains(t, script, "woltka classify")
	assert.NotContains(t, script, "cat $infile0")

	merge, err := os.ReadFile(mergePath)
	require.NoError(t, err)
	mergeScript := string(merge)
	assert.Contains(t, mergeScript, "syndna_quantify")
	// the quantifier writes the table finish_woltka later collects
	assert.Contains(t, mergeScript, "--name syndna")
	assert.Contains(t, mergeScript, "finish_woltka")
	// no sam tarball for the removal variant
	assert.NotContains(t, mergeScript, "alignment.tar")
}
