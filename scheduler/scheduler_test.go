package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Biscgit/streamlet/chain"
	"github.com/Biscgit/streamlet/config"
	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/streamleterr"
)

type fakeInput struct {
	name        string
	failTimes   int32
	calls       int32
	succeedRec  map[string]any
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func (f *fakeInput) Name() string { return f.name }
func (f *fakeInput) Run(ctx context.Context, params map[string]any) (any, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxInFlight, prev, cur) {
			break
		}
	}
	time.Sleep(f.delay)
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failTimes {
		return nil, errors.New("transient failure")
	}
	return f.succeedRec, nil
}

type recordingTransform struct {
	name    string
	applied *[]string
	err     error
}

func (t *recordingTransform) Name() string { return t.name }
func (t *recordingTransform) Apply(ctx context.Context, f *frame.Frame) error {
	*t.applied = append(*t.applied, t.name)
	return t.err
}

type recordingOutput struct {
	name    string
	emitted *[]string
	mu      *sync.Mutex
	err     error
}

func (o *recordingOutput) Name() string { return o.name }
func (o *recordingOutput) Emit(ctx context.Context, f *frame.Frame) error {
	o.mu.Lock()
	*o.emitted = append(*o.emitted, o.name)
	o.mu.Unlock()
	return o.err
}

type recordingTransformSpec struct {
	name    string
	applied *[]string
	err     error
}

func newTestRunner(input *fakeInput, transforms []recordingTransformSpec, outputs []string, emitted *[]string, mu *sync.Mutex) TaskRunner {
	c := &chain.TaskChain{
		InputName: "in1",
		Task: config.Task{
			Name:       "t1",
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		},
	}

	tr := TaskRunner{Chain: c, Input: input, Result: frame.ResultSelector{}}
	for _, ts := range transforms {
		tr.Transforms = append(tr.Transforms, &recordingTransform{name: ts.name, applied: ts.applied, err: ts.err})
	}
	for _, name := range outputs {
		tr.Outputs = append(tr.Outputs, &recordingOutput{name: name, emitted: emitted, mu: mu})
	}
	return tr
}

// TestRetryLaw_SucceedsAfterKFailures proves that an
// input failing k times then succeeding still produces one fire, with no
// failure logged once max_retries covers k.
func TestRetryLaw_SucceedsAfterKFailures(t *testing.T) {
	input := &fakeInput{name: "in1", failTimes: 2, succeedRec: map[string]any{"value": 1}}
	var applied []string
	var emitted []string
	var mu sync.Mutex
	tr := newTestRunner(input, []recordingTransformSpec{{name: "tx1", applied: &applied}}, []string{"out1"}, &emitted, &mu)

	d := New(Options{Policy: PolicyParallel}, frame.NewBuilder(".", false), nil)
	d.fire(context.Background(), tr)

	assert.Equal(t, int32(3), input.calls)
	assert.Equal(t, []string{"tx1"}, applied)
	assert.Equal(t, []string{"out1"}, emitted)
}

func TestRetryLaw_ExhaustsAndDropsFire(t *testing.T) {
	input := &fakeInput{name: "in1", failTimes: 10, succeedRec: map[string]any{"value": 1}}
	var applied []string
	var emitted []string
	var mu sync.Mutex
	tr := newTestRunner(input, []recordingTransformSpec{{name: "tx1", applied: &applied}}, []string{"out1"}, &emitted, &mu)

	d := New(Options{Policy: PolicyParallel}, frame.NewBuilder(".", false), nil)
	d.fire(context.Background(), tr)

	assert.Equal(t, int32(3), input.calls) // MaxRetries=2 -> 3 attempts total
	assert.Empty(t, applied)
	assert.Empty(t, emitted)
}

func TestWalkTransforms_TerminalErrorSkipsOutputs(t *testing.T) {
	input := &fakeInput{name: "in1", succeedRec: map[string]any{"value": 1}}
	var applied []string
	var emitted []string
	var mu sync.Mutex

	tr := newTestRunner(input,
		[]recordingTransformSpec{
			{name: "tx1", applied: &applied, err: streamleterr.Terminal(errors.New("terminal"))},
			{name: "tx2", applied: &applied},
		},
		[]string{"out1"}, &emitted, &mu)

	d := New(Options{Policy: PolicyParallel}, frame.NewBuilder(".", false), nil)
	d.fire(context.Background(), tr)

	assert.Equal(t, []string{"tx1"}, applied) // tx2 never runs
	assert.Empty(t, emitted)
}

func TestWalkTransforms_NonTerminalErrorContinues(t *testing.T) {
	input := &fakeInput{name: "in1", succeedRec: map[string]any{"value": 1}}
	var applied []string
	var emitted []string
	var mu sync.Mutex

	tr := newTestRunner(input,
		[]recordingTransformSpec{
			{name: "tx1", applied: &applied, err: errors.New("ordinary failure")},
			{name: "tx2", applied: &applied},
		},
		[]string{"out1"}, &emitted, &mu)

	d := New(Options{Policy: PolicyParallel}, frame.NewBuilder(".", false), nil)
	d.fire(context.Background(), tr)

	assert.Equal(t, []string{"tx1", "tx2"}, applied)
	assert.Equal(t, []string{"out1"}, emitted)
}

func TestWalkOutputs_DisableOutputsSkipsStep4(t *testing.T) {
	input := &fakeInput{name: "in1", succeedRec: map[string]any{"value": 1}}
	var applied []string
	var emitted []string
	var mu sync.Mutex
	tr := newTestRunner(input, []recordingTransformSpec{{name: "tx1", applied: &applied}}, []string{"out1"}, &emitted, &mu)

	d := New(Options{Policy: PolicyParallel, DisableOutputs: true}, frame.NewBuilder(".", false), nil)
	d.fire(context.Background(), tr)

	assert.Equal(t, []string{"tx1"}, applied)
	assert.Empty(t, emitted)
}

func TestSerialPolicy_NoConcurrentFires(t *testing.T) {
	var mu sync.Mutex
	var order []string
	d := New(Options{Policy: PolicySerial}, frame.NewBuilder(".", false), nil)

	slow := &fakeInput{name: "slow", delay: 20 * time.Millisecond, succeedRec: map[string]any{"value": 1}}
	tr1 := newTestRunner(slow, []recordingTransformSpec{{name: "tx", applied: &order}}, nil, &order, &mu)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.fire(context.Background(), tr1) }()
	go func() { defer wg.Done(); d.fire(context.Background(), tr1) }()
	wg.Wait()

	assert.Equal(t, int32(2), slow.calls)
	assert.Equal(t, int32(1), slow.maxInFlight) // the two fires never overlapped
}
