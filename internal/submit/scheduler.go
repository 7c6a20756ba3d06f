// Package submit renders batch submission scripts for the woltka
// pipeline and submits them to the cluster scheduler as a two-job chain
// (per-sample array job, then a dependent merge job).
package submit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Family identifies a batch scheduler family.
type Family string

const (
	FamilyTorque Family = "torque"
	FamilySlurm  Family = "slurm"
)

// Scheduler is the narrow "submit script, get job id" capability. Job id
// extraction from scheduler stdout is inherently fragile string parsing,
// so it stays behind this interface and the chain logic never sees raw
// scheduler output.
type Scheduler interface {
	// Submit submits a script and returns the scheduler job id.
	Submit(ctx context.Context, scriptPath string) (string, error)
	// SubmitDependent submits a script that runs only after every task
	// of the afterOK job finishes successfully.
	SubmitDependent(ctx context.Context, scriptPath, afterOK string) (string, error)
	// Family reports which scheduler family this is, for script headers.
	Family() Family
}

// ForFamily returns the scheduler implementation for a family.
func ForFamily(family Family) (Scheduler, error) {
	switch family {
	case FamilyTorque:
		return NewTorque(), nil
	case FamilySlurm:
		return NewSlurm(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler family %q", family)
	}
}

// TorqueScheduler submits through qsub. Torque prints the bare job id
// (e.g. "12345.server"), so the id is the trimmed stdout.
type TorqueScheduler struct {
	// Bin is the submission binary, overridable for tests.
	Bin string
}

// NewTorque returns a qsub-backed scheduler.
func NewTorque() *TorqueScheduler {
	return &TorqueScheduler{Bin: "qsub"}
}

func (s *TorqueScheduler) Family() Family { return FamilyTorque }

func (s *TorqueScheduler) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := runSubmitter(ctx, s.Bin, scriptPath)
	if err != nil {
		return "", err
	}
	return parseTorqueJobID(out)
}

func (s *TorqueScheduler) SubmitDependent(ctx context.Context, scriptPath, afterOK string) (string, error) {
	out, err := runSubmitter(ctx, s.Bin, "-W", "depend=afterokarray:"+afterOK, scriptPath)
	if err != nil {
		return "", err
	}
	return parseTorqueJobID(out)
}

// SlurmScheduler submits through sbatch. Slurm prints
// "Submitted batch job 12345", so the id is the last stdout token.
type SlurmScheduler struct {
	Bin string
}

// NewSlurm returns an sbatch-backed scheduler.
func NewSlurm() *SlurmScheduler {
	return &SlurmScheduler{Bin: "sbatch"}
}

func (s *SlurmScheduler) Family() Family { return FamilySlurm }

func (s *SlurmScheduler) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := runSubmitter(ctx, s.Bin, scriptPath)
	if err != nil {
		return "", err
	}
	return parseSlurmJobID(out)
}

func (s *SlurmScheduler) SubmitDependent(ctx context.Context, scriptPath, afterOK string) (string, error) {
	out, err := runSubmitter(ctx, s.Bin, "--dependency=afterok:"+afterOK, scriptPath)
	if err != nil {
		return "", err
	}
	return parseSlurmJobID(out)
}

// runSubmitter executes the submission binary and returns its stdout.
// A non-zero exit is fatal; no retry is attempted at this layer.
func runSubmitter(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s failed: %w: %s", bin, err,
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s failed: %w", bin, err)
	}
	return string(out), nil
}

func parseTorqueJobID(out string) (string, error) {
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("qsub produced no job id")
	}
	return id, nil
}

func parseSlurmJobID(out string) (string, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", fmt.Errorf("sbatch produced no job id")
	}
	return fields[len(fields)-1], nil
}
