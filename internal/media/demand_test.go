package media

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemandNeverNegative(t *testing.T) {
	var d Demand

	n, err := d.Release()
	assert.Equal(t, ErrNegativeDemand, err)
	assert.Equal(t, int64(0), n)
	assert.False(t, d.Active())

	assert.Equal(t, int64(1), d.Acquire())
	assert.True(t, d.Active())

	n, err = d.Release()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDemandConcurrent(t *testing.T) {
	var d Demand
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Acquire()
			_, err := d.Release()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), d.Count())
}
