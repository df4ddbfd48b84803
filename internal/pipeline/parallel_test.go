package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	progress []int
	errors   map[int]error
	complete int
}

func (r *recordingProgress) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingProgress) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete++
}

func (r *recordingProgress) OnError(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = make(map[int]error)
	}
	r.errors[index] = err
}

func batchInputs(t *testing.T, widths ...int) [][]byte {
	t.Helper()
	inputs := make([][]byte, len(widths))
	for i, w := range widths {
		inputs[i] = testutil.EncodePNG(t, testutil.SubjectImage(w, 30))
	}
	return inputs
}

func TestProcessBatch_PartialFailure(t *testing.T) {
	p := newTestPipeline(t, testutil.NewUniformSegmenter(32, 1))
	inputs := batchInputs(t, 10, 20, 30)
	inputs = append(inputs[:1], append([][]byte{[]byte("garbage")}, inputs[1:]...)...)

	progress := &recordingProgress{}
	batch, err := p.ProcessBatch(context.Background(), inputs, ParallelConfig{MaxWorkers: 2, ProgressCallback: progress})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Items, 4)

	failures := batch.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.ErrorIs(t, failures[0].Err, common.ErrInvalidImage)
	assert.Nil(t, failures[0].Output)

	// Order follows the input, not completion.
	ok := batch.Successful()
	require.Len(t, ok, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{ok[0].Output.Width, ok[1].Output.Width, ok[2].Output.Width})
	for i, it := range batch.Items {
		assert.Equal(t, i, it.Index)
	}

	assert.Equal(t, 4, progress.total)
	assert.Equal(t, []int{1, 2, 3, 4}, progress.progress)
	assert.Equal(t, 1, progress.complete)
	assert.Contains(t, progress.errors, 1)
}

func TestProcessBatch_AllFailed(t *testing.T) {
	p := newTestPipeline(t, testutil.NewUniformSegmenter(16, 1))
	batch, err := p.ProcessBatch(context.Background(), [][]byte{[]byte("a"), nil}, DefaultParallelConfig())
	require.ErrorIs(t, err, ErrNoImagesProcessed)
	require.NotNil(t, batch)
	assert.Equal(t, 2, batch.Failed)
	assert.Zero(t, batch.Succeeded)
}

func TestProcessBatch_ModelFailureIsolated(t *testing.T) {
	seg := testutil.NewUniformSegmenter(16, 1)
	seg.FailOnCall(2, errors.New("transient"))
	p := newTestPipeline(t, seg)

	batch, err := p.ProcessBatch(context.Background(), batchInputs(t, 8, 9, 10), ParallelConfig{MaxWorkers: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Succeeded)
	require.Len(t, batch.Failures(), 1)
	assert.Equal(t, common.KindModel, common.KindOf(batch.Failures()[0].Err))
}

func TestProcessBatch_EmptyInput(t *testing.T) {
	p := newTestPipeline(t, testutil.NewUniformSegmenter(16, 1))
	_, err := p.ProcessBatch(context.Background(), nil, DefaultParallelConfig())
	assert.Error(t, err)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	seg := testutil.NewUniformSegmenter(16, 1)
	p := newTestPipeline(t, seg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := p.ProcessBatch(ctx, batchInputs(t, 5, 6, 7, 8), ParallelConfig{MaxWorkers: 2})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.Equal(t, 4, batch.Failed)
	assert.Zero(t, seg.Calls())
	for _, it := range batch.Items {
		assert.ErrorIs(t, it.Err, context.Canceled)
	}
}

func TestProcessBatch_ConcurrentMatchesSequential(t *testing.T) {
	p := newTestPipeline(t, testutil.NewDiscSegmenter(64, 0.7))
	inputs := batchInputs(t, 40, 55, 70, 85, 100, 115)

	seq, err := p.ProcessBatch(context.Background(), inputs, ParallelConfig{MaxWorkers: 1})
	require.NoError(t, err)
	par, err := p.ProcessBatch(context.Background(), inputs, ParallelConfig{MaxWorkers: 4})
	require.NoError(t, err)

	for i := range inputs {
		assert.Equal(t, seq.Items[i].Output.PNG, par.Items[i].Output.PNG, "item %d", i)
	}
}
