package callbacks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepBudget_PerInvocation(t *testing.T) {
	b := NewStepBudget("researcher", 2)

	assert.True(t, b.take("inv-1"))
	assert.True(t, b.take("inv-1"))
	assert.False(t, b.take("inv-1"))
	assert.True(t, b.Exhausted())

	// a second invocation of the same agent starts from zero
	assert.True(t, b.take("inv-2"))
	assert.Equal(t, 3, b.Steps())
	assert.Equal(t, 2, b.Max())
}

func TestStepBudget_Concurrent(t *testing.T) {
	b := NewStepBudget("orchestrator", 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.take("inv") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, granted)
	assert.Equal(t, 50, b.Steps())
	assert.True(t, b.Exhausted())
}

func TestStopWhenBeforeModel(t *testing.T) {
	stop := false
	cb := StopWhenBeforeModel(func() bool { return stop }, "done")

	resp, err := cb(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp)

	stop = true
	resp, err = cb(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "done", resp.Content.Parts[0].Text)
	assert.True(t, resp.TurnComplete)
}
