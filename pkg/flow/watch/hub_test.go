package watch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHub_SubscribeNotify verifies delivery to every subscriber in the
// caller's goroutine.
func TestHub_SubscribeNotify(t *testing.T) {
	h := NewHub[int]()

	var a, b []int
	h.Subscribe(func(v int) { a = append(a, v) })
	h.Subscribe(func(v int) { b = append(b, v) })
	require.Equal(t, 2, h.Len())

	h.Notify(1)
	h.Notify(2)

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, b)
}

// TestHub_Cancel verifies cancellation is idempotent and scoped to one
// subscription.
func TestHub_Cancel(t *testing.T) {
	h := NewHub[string]()

	var kept, dropped []string
	h.Subscribe(func(v string) { kept = append(kept, v) })
	cancel := h.Subscribe(func(v string) { dropped = append(dropped, v) })

	h.Notify("before")
	cancel()
	cancel() // second call is a no-op
	h.Notify("after")

	assert.Equal(t, []string{"before", "after"}, kept)
	assert.Equal(t, []string{"before"}, dropped)
	assert.Equal(t, 1, h.Len())
}

// TestHub_NilSubscriber verifies a nil handler is rejected quietly.
func TestHub_NilSubscriber(t *testing.T) {
	h := NewHub[int]()
	cancel := h.Subscribe(nil)
	cancel()
	assert.Zero(t, h.Len())

	h.Notify(1) // must not panic
}

// TestHub_SubscribeDuringNotify verifies handlers may mutate the
// subscriber list while a delivery is in flight.
func TestHub_SubscribeDuringNotify(t *testing.T) {
	h := NewHub[int]()

	var late []int
	h.Subscribe(func(v int) {
		if v == 1 {
			h.Subscribe(func(v int) { late = append(late, v) })
		}
	})

	h.Notify(1)
	assert.Empty(t, late, "a handler added mid-delivery misses the current value")

	h.Notify(2)
	assert.Equal(t, []int{2}, late)
}

// TestHub_CancelDuringNotify verifies a handler cancelling itself does
// not disturb the in-flight snapshot.
func TestHub_CancelDuringNotify(t *testing.T) {
	h := NewHub[int]()

	var got []int
	var cancel func()
	cancel = h.Subscribe(func(v int) {
		got = append(got, v)
		cancel()
	})

	h.Notify(1)
	h.Notify(2)
	assert.Equal(t, []int{1}, got)
	assert.Zero(t, h.Len())
}

// TestHub_Close verifies a closed hub delivers nothing and refuses new
// subscribers.
func TestHub_Close(t *testing.T) {
	h := NewHub[int]()

	var got []int
	h.Subscribe(func(v int) { got = append(got, v) })
	h.Close()

	h.Notify(1)
	assert.Empty(t, got)
	assert.Zero(t, h.Len())

	h.Subscribe(func(v int) { got = append(got, v) })
	h.Notify(2)
	assert.Empty(t, got, "closed hub ignores new subscribers")
}

// TestHub_ConcurrentAccess verifies subscribe, notify, and cancel are
// safe to interleave from many goroutines.
func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cancel := h.Subscribe(func(int) {})
				h.Notify(j)
				cancel()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, h.Len())
}
