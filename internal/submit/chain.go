package submit

import (
	"context"
	"fmt"
)

// ChainState tracks how far a two-job submission has progressed.
type ChainState int

const (
	ChainPending ChainState = iota
	ChainMainSubmitted
	ChainMergeSubmitted
)

func (s ChainState) String() string {
	switch s {
	case ChainPending:
		return "pending"
	case ChainMainSubmitted:
		return "main-submitted"
	case ChainMergeSubmitted:
		return "merge-submitted"
	default:
		return fmt.Sprintf("ChainState(%d)", int(s))
	}
}

// Result carries both scheduler job ids so the orchestrator can track
// the pair.
type Result struct {
	MainID  string
	MergeID string
}

// Chain is a single-shot two-job submission: the array script first,
// then the merge script with a "run after every array task succeeds"
// dependency on the array job. Once submission begins the external jobs
// are independent and cannot be recalled from here.
type Chain struct {
	scheduler Scheduler
	state     ChainState
	result    Result
}

// NewChain builds a chain over the given scheduler.
func NewChain(scheduler Scheduler) *Chain {
	return &Chain{scheduler: scheduler}
}

// State reports the chain's progress.
func (c *Chain) State() ChainState {
	return c.state
}

// Submit runs the chain: main script, then merge script depending on
// the main job id. Any failure leaves the chain in its current state
// and is terminal; jobs already submitted keep running externally.
func (c *Chain) Submit(ctx context.Context, mainScript, mergeScript string) (Result, error) {
	if c.state != ChainPending {
		return c.result, fmt.Errorf("chain already %s", c.state)
	}

	mainID, err := c.scheduler.Submit(ctx, mainScript)
	if err != nil {
		return Result{}, fmt.Errorf("submitting main job: %w", err)
	}
	c.state = ChainMainSubmitted
	c.result.MainID = mainID

	mergeID, err := c.scheduler.SubmitDependent(ctx, mergeScript, mainID)
	if err != nil {
		return c.result, fmt.Errorf("submitting merge job after %s: %w", mainID, err)
	}
	c.state = ChainMergeSubmitted
	c.result.MergeID = mergeID

	return c.result, nil
}
