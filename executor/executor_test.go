package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushJobRunsInOrder(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("order")
	require.NoError(t, err)
	defer r.Destroy("order")

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		e.PushJob(func() { got = append(got, i) })
	}
	e.Flush()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("dup")
	require.NoError(t, err)
	defer r.Destroy("dup")

	_, err = r.Register("dup")
	assert.ErrorIs(t, err, ErrDuplicateExecutorName)
}

func TestDestroyUnknownExecutorReturnsFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Destroy("nope"))
}

func TestPushJobToUnknownExecutorIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.PushJob("nope", func() {}) })
}

func TestFlushUnknownExecutorIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Flush("nope") })
}

func TestWaitJobResponseReturnsValue(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("wait")
	require.NoError(t, err)
	defer r.Destroy("wait")

	v, err := WaitJobResponse(e, func() (int, error) { return 42, nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestWaitJobResponseTimesOut(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("timeout")
	require.NoError(t, err)
	defer r.Destroy("timeout")

	_, err = WaitJobResponse(e, func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 0, nil
	}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrJobTimedOut)
}

func TestWaitJobResponsePropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("handlererr")
	require.NoError(t, err)
	defer r.Destroy("handlererr")

	sentinel := errors.New("boom")
	_, err = WaitJobResponse(e, func() (int, error) { return 0, sentinel }, 0)
	assert.ErrorIs(t, err, sentinel)
}

func TestWaitJobResponseRecoversPanic(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("panic")
	require.NoError(t, err)
	defer r.Destroy("panic")

	_, err = WaitJobResponse(e, func() (int, error) { panic("job exploded") }, 0)
	assert.ErrorIs(t, err, ErrJobPanicked)

	// The executor goroutine must have survived the panic.
	v, err := WaitJobResponse(e, func() (int, error) { return 7, nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestWaitJobResponseFromExecutorsOwnGoroutineRunsInline(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("reentrant")
	require.NoError(t, err)
	defer r.Destroy("reentrant")

	done := make(chan struct{})
	e.PushJob(func() {
		v, err := WaitJobResponse(e, func() (int, error) { return 9, nil }, 50*time.Millisecond)
		assert.NoError(t, err)
		assert.Equal(t, 9, v)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested WaitJobResponse from the executor's own goroutine deadlocked")
	}
}

func TestWaitJobRunsVoidJob(t *testing.T) {
	r := NewRegistry()
	e, err := r.Register("void")
	require.NoError(t, err)
	defer r.Destroy("void")

	ran := false
	require.NoError(t, WaitJob(e, func() { ran = true }, 0))
	assert.True(t, ran)
}

func TestIsRegisteredReflectsRegisterAndDestroy(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.IsRegistered("flag"))
	_, err := r.Register("flag")
	require.NoError(t, err)
	assert.True(t, r.IsRegistered("flag"))
	r.Destroy("flag")
	assert.False(t, r.IsRegistered("flag"))
}
