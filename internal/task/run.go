package task

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/antgonza/qp-woltka/internal/artifacts"
	"github.com/antgonza/qp-woltka/internal/config"
	"github.com/antgonza/qp-woltka/internal/prep"
	"github.com/antgonza/qp-woltka/internal/qiita"
	"github.com/antgonza/qp-woltka/internal/submit"
)

// Orchestrator is the slice of the Qiita client the dispatch flow
// consumes.
type Orchestrator interface {
	artifacts.Fetcher
	GetJobInfo(ctx context.Context, jobID string) (*qiita.JobInfo, error)
	UpdateJobStep(ctx context.Context, jobID, step string) error
	CompleteJob(ctx context.Context, jobID string, success bool, ainfo []qiita.ArtifactInfo, errMsg string) error
}

// StartOptions configures one start_woltka invocation.
type StartOptions struct {
	URL         string
	JobID       string
	OutDir      string
	Environment string
	Profiles    config.Profiles
	Scheduler   submit.Scheduler
	// Runner executes the direct-path commands; nil uses the external
	// calculator binaries.
	Runner DirectRunner
	Logger *zap.Logger
}

// Start runs the dispatch flow for one job: classify the command,
// resolve the artifact, build the submission scripts and submit the
// main+merge chain. Direct commands run synchronously instead and
// return a nil chain result.
//
// Failures meant for operator display (ambiguous input directories) are
// additionally reported to the server as a failed job before the error
// is returned; every other failure only propagates to the caller.
func Start(ctx context.Context, client Orchestrator, opts StartOptions) (*submit.Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	info, err := client.GetJobInfo(ctx, opts.JobID)
	if err != nil {
		return nil, fmt.Errorf("fetching job info: %w", err)
	}

	cmd, err := Classify(info.Command)
	if err != nil {
		return nil, err
	}
	log.Info("dispatching job",
		zap.String("job_id", opts.JobID),
		zap.Stringer("command", cmd))

	// Progress point 1: right after the dispatch decision.
	step1 := "Step 1 of 4: Collecting info and generating submission"
	if err := client.UpdateJobStep(ctx, opts.JobID, step1); err != nil {
		return nil, fmt.Errorf("updating job step: %w", err)
	}

	if cmd.Direct() {
		return nil, runDirect(ctx, client, cmd, info, opts)
	}

	req, err := buildRequest(ctx, client, cmd, info, opts, log)
	if err != nil {
		if errors.Is(err, artifacts.ErrAmbiguousDirectories) {
			// Reported to the server so the failure shows up in the job
			// monitoring UI instead of only in this process's output.
			_ = client.CompleteJob(ctx, opts.JobID, false, nil, err.Error())
		}
		return nil, err
	}

	var mainScript, mergeScript string
	switch cmd {
	case CommandWoltka:
		mainScript, mergeScript, err = submit.WoltkaToArray(*req)
	case CommandSynDNA:
		mainScript, mergeScript, err = submit.SynDNAToArray(*req)
	}
	if err != nil {
		return nil, fmt.Errorf("building submission scripts: %w", err)
	}
	log.Info("submission scripts written",
		zap.String("main", mainScript),
		zap.String("merge", mergeScript))

	chain := submit.NewChain(opts.Scheduler)
	result, err := chain.Submit(ctx, mainScript, mergeScript)
	if err != nil {
		return nil, err
	}

	// Progress point 2: right after the merge job is submitted.
	step2 := fmt.Sprintf("Step 2 of 4: Monitoring alignment and classification: %s, %s",
		result.MainID, result.MergeID)
	if err := client.UpdateJobStep(ctx, opts.JobID, step2); err != nil {
		return &result, fmt.Errorf("updating job step: %w", err)
	}

	return &result, nil
}

// buildRequest resolves the job's artifact through the dispatch shape
// its command uses and assembles the script builder request.
func buildRequest(ctx context.Context, client Orchestrator, cmd Command, info *qiita.JobInfo, opts StartOptions, log *zap.Logger) (*submit.Request, error) {
	req := &submit.Request{
		JobID:       opts.JobID,
		URL:         opts.URL,
		OutputDir:   opts.OutDir,
		Database:    info.Parameter("Database"),
		Environment: opts.Environment,
		Profiles:    opts.Profiles,
		Family:      opts.Scheduler.Family(),
	}

	switch cmd {
	case CommandWoltka:
		// Current shape: files + prep accessor, summary required.
		resolved, err := artifacts.Resolve(ctx, client, info.Parameter("artifact"), true)
		if err != nil {
			return nil, err
		}

		preparation, err := prep.Load(resolved.PrepPath)
		if err != nil {
			return nil, err
		}
		req.PrepPath = preparation.Path
		req.Files = preparation.InputPaths(resolved.Directory)

		if summary, err := artifacts.ParseSummary(resolved.SummaryPath); err != nil {
			// Present but unparseable: size with defaults.
			log.Warn("could not parse artifact summary", zap.Error(err))
		} else {
			req.Profiles = req.Profiles.ScaleForReads(summary.TotalReads())
		}

	case CommandSynDNA:
		// Earlier shape: the raw artifact file listing, keyed by the
		// "input" parameter; reads are processed file by file.
		resolved, err := artifacts.ResolveLegacy(ctx, client, info.Parameter("input"))
		if err != nil {
			return nil, err
		}
		for _, tag := range []string{"raw_forward_seqs", "raw_reverse_seqs"} {
			for _, rec := range resolved.Files[tag] {
				if rec.Path != "" {
					req.Files = append(req.Files, rec.Path)
				}
			}
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.String())
	}

	return req, nil
}
