package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInPostOrder(t *testing.T) {
	l := New(nil)
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Drain(context.Background()))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_NestedPostDoesNotDeadlock(t *testing.T) {
	l := New(nil)
	defer l.Close()

	var order []string
	require.NoError(t, l.Call(context.Background(), func() {
		order = append(order, "outer")
		l.Post(func() {
			order = append(order, "inner")
			l.Post(func() { order = append(order, "innermost") })
		})
	}))
	require.NoError(t, l.Drain(context.Background()))

	assert.Equal(t, []string{"outer", "inner", "innermost"}, order)
}

func TestLoop_ConcurrentPosters(t *testing.T) {
	l := New(nil)
	defer l.Close()

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Drain(context.Background()))
	assert.Equal(t, 400, counter)
}

func TestLoop_RecoversPanics(t *testing.T) {
	var recovered interface{}
	l := New(func(r interface{}) { recovered = r })
	defer l.Close()

	l.Post(func() { panic("bad callback") })
	ran := false
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))

	assert.True(t, ran)
	assert.Equal(t, "bad callback", recovered)
}

func TestLoop_CallHonoursContext(t *testing.T) {
	l := New(nil)
	defer l.Close()

	block := make(chan struct{})
	l.Post(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Call(ctx, func() {})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(block)
}

func TestLoop_ClosedRejectsWork(t *testing.T) {
	l := New(nil)
	ran := false
	l.Post(func() { ran = true })
	l.Close()

	assert.True(t, ran, "queued work runs before close returns")
	assert.False(t, l.Post(func() {}))
	assert.True(t, errors.Is(l.Call(context.Background(), func() {}), ErrClosed))
}
