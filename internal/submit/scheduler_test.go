package submit

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSubmitter writes a shell script that prints output and records its
// arguments, standing in for qsub/sbatch.
func stubSubmitter(t *testing.T, output string, exitCode int) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	bin = filepath.Join(dir, "submitter")
	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"printf '" + output + "'\n" +
		"exit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))
	return bin, argsFile
}

func readArgs(t *testing.T, argsFile string) string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	return string(data)
}

func TestTorqueSubmit(t *testing.T) {
	bin, args := stubSubmitter(t, `12345.server\n`, 0)
	s := NewTorque()
	s.Bin = bin

	id, err := s.Submit(context.Background(), "/out/job.qsub")
	require.NoError(t, err)
	assert.Equal(t, "12345.server", id)
	assert.Equal(t, "/out/job.qsub\n", readArgs(t, args))
}

func TestTorqueSubmitDependent(t *testing.T) {
	bin, args := stubSubmitter(t, `12346.server\n`, 0)
	s := NewTorque()
	s.Bin = bin

	id, err := s.SubmitDependent(context.Background(), "/out/job.merge.qsub", "12345.server")
	require.NoError(t, err)
	assert.Equal(t, "12346.server", id)
	assert.Equal(t, "-W depend=afterokarray:12345.server /out/job.merge.qsub\n", readArgs(t, args))
}

func TestSlurmSubmit(t *testing.T) {
	bin, _ := stubSubmitter(t, `Submitted batch job 12345\n`, 0)
	s := NewSlurm()
	s.Bin = bin

	id, err := s.Submit(context.Background(), "/out/job.slurm")
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
}

func TestSlurmSubmitDependent(t *testing.T) {
	bin, args := stubSubmitter(t, `Submitted batch job 12346\n`, 0)
	s := NewSlurm()
	s.Bin = bin

	id, err := s.SubmitDependent(context.Background(), "/out/job.merge.slurm", "12345")
	require.NoError(t, err)
	assert.Equal(t, "12346", id)
	assert.Equal(t, "--dependency=afterok:12345 /out/job.merge.slurm\n", readArgs(t, args))
}

func TestSubmitFailurePropagates(t *testing.T) {
	bin, _ := stubSubmitter(t, ``, 1)
	s := NewTorque()
	s.Bin = bin

	_, err := s.Submit(context.Background(), "/out/job.qsub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestSubmitEmptyOutput(t *testing.T) {
	bin, _ := stubSubmitter(t, ``, 0)
	s := NewTorque()
	s.Bin = bin

	_, err := s.Submit(context.Background(), "/out/job.qsub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no job id")

	sl := NewSlurm()
	sl.Bin = bin
	_, err = sl.Submit(context.Background(), "/out/job.slurm")
	require.Error(t, err)
}

func TestForFamily(t *testing.T) {
	s, err := ForFamily(FamilyTorque)
	require.NoError(t, err)
	assert.Equal(t, FamilyTorque, s.Family())

	s, err = ForFamily(FamilySlurm)
	require.NoError(t, err)
	assert.Equal(t, FamilySlurm, s.Family())

	_, err = ForFamily("lsf")
	assert.Error(t, err)
}
