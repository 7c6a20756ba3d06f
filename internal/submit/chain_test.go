package submit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records submissions and serves canned ids.
type fakeScheduler struct {
	submits    []string
	dependents []string // "script after afterOK"
	ids        []string
	failOn     int // 1-based call index that errors, 0 for never
	calls      int
}

func (f *fakeScheduler) next() (string, error) {
	f.calls++
	if f.failOn == f.calls {
		return "", fmt.Errorf("scheduler rejected submission")
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

func (f *fakeScheduler) Submit(_ context.Context, script string) (string, error) {
	f.submits = append(f.submits, script)
	return f.next()
}

func (f *fakeScheduler) SubmitDependent(_ context.Context, script, afterOK string) (string, error) {
	f.dependents = append(f.dependents, script+" after "+afterOK)
	return f.next()
}

func (f *fakeScheduler) Family() Family { return FamilyTorque }

func TestChainSubmitsWithDependency(t *testing.T) {
	sched := &fakeScheduler{ids: []string{"12345.server", "12346.server"}}
	chain := NewChain(sched)
	assert.Equal(t, ChainPending, chain.State())

	res, err := chain.Submit(context.Background(), "/out/main.qsub", "/out/merge.qsub")
	require.NoError(t, err)

	assert.Equal(t, "12345.server", res.MainID)
	assert.Equal(t, "12346.server", res.MergeID)
	assert.Equal(t, ChainMergeSubmitted, chain.State())
	// the merge must depend on exactly the main job id token
	require.Len(t, sched.dependents, 1)
	assert.Equal(t, "/out/merge.qsub after 12345.server", sched.dependents[0])
}

func TestChainMainFailure(t *testing.T) {
	sched := &fakeScheduler{ids: []string{"x"}, failOn: 1}
	chain := NewChain(sched)

	_, err := chain.Submit(context.Background(), "/out/main.qsub", "/out/merge.qsub")
	require.Error(t, err)
	assert.Equal(t, ChainPending, chain.State())
	assert.Empty(t, sched.dependents)
}

func TestChainMergeFailure(t *testing.T) {
	sched := &fakeScheduler{ids: []string{"12345.server", "x"}, failOn: 2}
	chain := NewChain(sched)

	res, err := chain.Submit(context.Background(), "/out/main.qsub", "/out/merge.qsub")
	require.Error(t, err)
	// the main job is already out the door and stays submitted
	assert.Equal(t, ChainMainSubmitted, chain.State())
	assert.Equal(t, "12345.server", res.MainID)
	assert.Contains(t, err.Error(), "12345.server")
}

func TestChainSingleShot(t *testing.T) {
	sched := &fakeScheduler{ids: []string{"1", "2", "3", "4"}}
	chain := NewChain(sched)

	_, err := chain.Submit(context.Background(), "/out/main.qsub", "/out/merge.qsub")
	require.NoError(t, err)

	_, err = chain.Submit(context.Background(), "/out/main.qsub", "/out/merge.qsub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already merge-submitted")
}

func TestChainStateString(t *testing.T) {
	assert.Equal(t, "pending", ChainPending.String())
	assert.Equal(t, "main-submitted", ChainMainSubmitted.String())
	assert.Equal(t, "merge-submitted", ChainMergeSubmitted.String())
}
