package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiver_FirstGetWaitsForSend(t *testing.T) {
	w := New[uint16](1)
	rx, err := w.Receiver()
	require.NoError(t, err)

	got := make(chan uint16, 1)
	go func() {
		v, err := rx.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case v := <-got:
		t.Fatalf("Get returned %d before any send", v)
	case <-time.After(50 * time.Millisecond):
	}

	w.Send(42)

	select {
	case v := <-got:
		assert.Equal(t, uint16(42), v)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after send")
	}
}

func TestReceiver_FirstGetReturnsFirstValue(t *testing.T) {
	w := New[int](2)
	w.Send(7)

	rx, err := w.Receiver()
	require.NoError(t, err)

	v, err := rx.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, uint64(1), rx.Seen())
}

func TestReceiver_SecondGetBlocksUntilNewSend(t *testing.T) {
	w := New[int](1)
	rx, err := w.Receiver()
	require.NoError(t, err)

	w.Send(1)
	v, err := rx.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = rx.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "same version must not be delivered twice")

	w.Send(2)
	v, err = rx.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestReceiver_LossyLatestValue(t *testing.T) {
	w := New[int](1)
	rx, err := w.Receiver()
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		w.Send(i)
	}

	v, err := rx.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v, "intermediate values are skipped")
	assert.Equal(t, uint64(5), rx.Seen())

	_, ok := rx.TryGet()
	assert.False(t, ok)
}

func TestWatch_ReceiverLimit(t *testing.T) {
	w := New[int](3)

	for i := 0; i < 3; i++ {
		_, err := w.Receiver()
		require.NoError(t, err)
	}

	_, err := w.Receiver()
	assert.ErrorIs(t, err, ErrReceiverLimit)
	assert.Equal(t, 3, w.Receivers())
	assert.Equal(t, 3, w.Limit())
}

func TestWatch_MinimumLimit(t *testing.T) {
	w := New[int](0)
	assert.Equal(t, 1, w.Limit())
}

func TestWatch_Peek(t *testing.T) {
	w := New[string](1)

	_, version, ok := w.Peek()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), version)

	w.Send("a")
	w.Send("b")
	v, version, ok := w.Peek()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, uint64(2), w.Version())
}

func TestReceiver_IndependentCursors(t *testing.T) {
	w := New[int](2)
	fast, err := w.Receiver()
	require.NoError(t, err)
	slow, err := w.Receiver()
	require.NoError(t, err)

	ctx := context.Background()

	w.Send(1)
	v, err := fast.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	w.Send(2)
	v, err = fast.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// Slow reader has never read: it sees the latest value, not 1.
	v, err = slow.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	w.Send(3)
	v, err = slow.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = fast.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestReceiver_DifferentCadences(t *testing.T) {
	w := New[int](2)
	fast, err := w.Receiver()
	require.NoError(t, err)
	slow, err := w.Receiver()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const sends = 50
	var wg sync.WaitGroup
	var fastSeen, slowSeen []int

	read := func(rx *Receiver[int], pause time.Duration, out *[]int) {
		defer wg.Done()
		for {
			v, err := rx.Get(ctx)
			if err != nil {
				return
			}
			*out = append(*out, v)
			if v == sends {
				return
			}
			time.Sleep(pause)
		}
	}

	wg.Add(2)
	go read(fast, 0, &fastSeen)
	go read(slow, 5*time.Millisecond, &slowSeen)

	for i := 1; i <= sends; i++ {
		w.Send(i)
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("readers did not observe the final value")
	}

	for _, seen := range [][]int{fastSeen, slowSeen} {
		require.NotEmpty(t, seen)
		assert.Equal(t, sends, seen[len(seen)-1])
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i], seen[i-1], "values must be strictly newer")
		}
	}
	assert.Greater(t, len(fastSeen), len(slowSeen), "slow reader skips intermediate values")
}

func TestReceiver_GetCancelled(t *testing.T) {
	w := New[int](1)
	rx, err := w.Receiver()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := rx.Get(ctx)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after cancel")
	}
}

func TestWatch_SendNeverBlocks(t *testing.T) {
	w := New[int](4)
	for i := 0; i < 4; i++ {
		_, err := w.Receiver()
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			w.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with idle receivers")
	}
	assert.Equal(t, uint64(10000), w.Version())
}
