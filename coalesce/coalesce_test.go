package coalesce_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/omni/coalesce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects committed batches.
type recorder struct {
	mu      sync.Mutex
	batches []map[string]string
}

func (r *recorder) commit(batch map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *recorder) snapshot() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]string(nil), r.batches...)
}

func (r *recorder) joined(turnID string) string {
	var s string
	for _, b := range r.snapshot() {
		s += b[turnID]
	}
	return s
}

func TestCoalescer_TimedFlushBatchesDeltas(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(20*time.Millisecond))
	defer c.Stop()

	c.Append("t1", "Hel")
	c.Append("t1", "lo")
	c.Append("t2", "x")
	assert.True(t, c.Pending())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, map[string]string{"t1": "Hello", "t2": "x"}, rec.snapshot()[0])
	assert.False(t, c.Pending())
}

func TestCoalescer_FlushNowCommitsSynchronously(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(time.Hour))
	defer c.Stop()

	c.Append("t1", "A")
	c.FlushNow()

	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, "A", rec.snapshot()[0]["t1"])
	assert.False(t, c.Pending())
}

func TestCoalescer_FlushNowWithEmptyBufferCommitsNothing(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit)
	c.FlushNow()
	c.Append("t1", "")
	c.FlushNow()

	assert.Empty(t, rec.snapshot())
	assert.False(t, c.Pending())
}

func TestCoalescer_SingleTimerOutstanding(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(30*time.Millisecond))
	defer c.Stop()

	for i := 0; i < 50; i++ {
		c.Append("t1", "x")
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)
	// Give a second timer, if one had been scheduled, time to fire.
	time.Sleep(60 * time.Millisecond)
	batches := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0]["t1"], 50)
}

func TestCoalescer_StopDiscardsBuffer(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(10*time.Millisecond))

	c.Append("t1", "lost")
	c.Stop()
	assert.False(t, c.Pending())

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// The coalescer stays usable after Stop.
	c.Append("t1", "kept")
	c.FlushNow()
	assert.Equal(t, "kept", rec.joined("t1"))
}

func TestCoalescer_PreservesOrderUnderConcurrentFlushes(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(time.Millisecond))
	defer c.Stop()

	want := ""
	for i := 0; i < 200; i++ {
		d := string(rune('a' + i%26))
		want += d
		c.Append("t1", d)
		if i%7 == 0 {
			c.FlushNow()
		}
	}
	c.FlushNow()

	assert.Equal(t, want, rec.joined("t1"))
}

func TestCoalescer_InvalidIntervalKeepsDefault(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := coalesce.New(rec.commit, coalesce.WithInterval(0))
	defer c.Stop()

	c.Append("t1", "x")
	require.Eventually(t, func() bool { return rec.joined("t1") == "x" }, time.Second, 5*time.Millisecond)
}
