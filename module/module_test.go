package module

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magolch/plogd/conf"
)

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) write(message, filepath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func setParams(t *testing.T, filename string, period int64) {
	t.Helper()
	conf.SetFilename(filename)
	conf.SetTimerPeriod(period)
	conf.WorkerBuffSize = 16
}

func TestLoadRejectsInvalidPeriod(t *testing.T) {
	for _, period := range []int64{0, -1, 3601} {
		setParams(t, "/tmp/x.log", period)
		s, err := Load(nil)
		require.Error(t, err, "period %d", period)
		assert.Nil(t, s)
	}
}

func TestLoadRejectsInvalidFilename(t *testing.T) {
	for _, name := range []string{"", strings.Repeat("a", 5000)} {
		setParams(t, name, 5)
		s, err := Load(nil)
		require.Error(t, err)
		assert.Nil(t, s)
	}
}

func TestPeriodicWritesAndUnload(t *testing.T) {
	rec := &recorder{}
	setParams(t, "/tmp/x.log", 1)

	s, err := load(nil, rec.write)
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.Lifecycle())

	time.Sleep(2500 * time.Millisecond)
	s.Unload()

	got := rec.snapshot()
	require.GreaterOrEqual(t, len(got), 3, "expected at least two cycles plus the terminal line")
	assert.Equal(t, "Hello from kernel module (1)\n", got[0])
	assert.Equal(t, "Hello from kernel module (2)\n", got[1])
	assert.Equal(t, "Module unloaded\n", got[len(got)-1])
	assert.Equal(t, StateDestroyed, s.Lifecycle())

	// nothing may be written once teardown has finished
	before := len(got)
	time.Sleep(1500 * time.Millisecond)
	assert.Len(t, rec.snapshot(), before)
}

func TestCounterSequenceNeverZero(t *testing.T) {
	rec := &recorder{}
	setParams(t, "/tmp/x.log", 3600)

	s, err := load(nil, rec.write)
	require.NoError(t, err)
	defer s.Unload()

	for i := 0; i < 5; i++ {
		s.fire()
	}
	s.queue.Flush()

	got := rec.snapshot()
	require.Len(t, got, 5)
	for i, msg := range got {
		assert.Equal(t, fmt.Sprintf("Hello from kernel module (%d)\n", i+1), msg)
	}
}

func TestCounterWraparoundCorrectsToOne(t *testing.T) {
	rec := &recorder{}
	setParams(t, "/tmp/x.log", 3600)

	s, err := load(nil, rec.write)
	require.NoError(t, err)
	defer s.Unload()

	s.counter.Store(math.MaxUint32)
	s.fire()
	s.queue.Flush()

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "Hello from kernel module (1)\n", got[0])
	assert.EqualValues(t, 1, s.TotalWrites())
}

func TestFireAfterDeactivationIsNoop(t *testing.T) {
	rec := &recorder{}
	setParams(t, "/tmp/x.log", 3600)

	s, err := load(nil, rec.write)
	require.NoError(t, err)

	s.active.Store(false)
	s.fire()
	s.queue.Flush()

	assert.Empty(t, rec.snapshot())
	s.active.Store(true)
	s.Unload()
}

func TestFullQueueSkipsCycleOnly(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 16)
	var rec recorder
	gated := func(message, filepath string) error {
		started <- struct{}{}
		<-gate
		return rec.write(message, filepath)
	}

	setParams(t, "/tmp/x.log", 3600)
	conf.WorkerBuffSize = 1

	s, err := load(nil, gated)
	require.NoError(t, err)

	s.fire() // taken by the worker
	<-started
	s.fire() // fills the buffer
	s.fire() // queue full, this cycle degrades to no line

	close(gate)
	s.queue.Flush()
	assert.Equal(t, []string{
		"Hello from kernel module (1)\n",
		"Hello from kernel module (2)\n",
	}, rec.snapshot())

	// the failed cycle consumed its counter value but the chain goes on
	s.fire()
	s.queue.Flush()
	got := rec.snapshot()
	assert.Equal(t, "Hello from kernel module (4)\n", got[len(got)-1])

	s.Unload()
}

func TestUnloadIdempotent(t *testing.T) {
	var nilState *State
	nilState.Unload() // safe no-op

	rec := &recorder{}
	setParams(t, "/tmp/x.log", 3600)
	s, err := load(nil, rec.write)
	require.NoError(t, err)

	s.Unload()
	s.Unload()

	assert.Equal(t, []string{"Module unloaded\n"}, rec.snapshot(),
		"the terminal line must appear exactly once")
}

func TestLoadWritesToRealFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "kernel_log.txt")
	setParams(t, target, 1)

	s, err := Load(nil)
	require.NoError(t, err)

	time.Sleep(1300 * time.Millisecond)
	s.Unload()

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Hello from kernel module (1)", lines[0])
	assert.Equal(t, "Module unloaded", lines[len(lines)-1])
}
