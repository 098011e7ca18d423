package recognizer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// overlapExtractor flags any call that enters Extract while another one is
// still in flight.
type overlapExtractor struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
	calls    atomic.Int32
}

func (o *overlapExtractor) Extract(image []byte) ([]Face, error) {
	if o.inFlight.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	o.inFlight.Add(-1)
	o.calls.Add(1)
	return nil, nil
}

func (o *overlapExtractor) Close() {}

func TestSerializeExtractorNeverOverlapsCalls(t *testing.T) {
	inner := &overlapExtractor{}
	ext := SerializeExtractor(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, _ = ext.Extract(nil)
			}
		}()
	}
	wg.Wait()

	assert.False(t, inner.overlap.Load(), "shared-buffer extractor must never run concurrently")
	assert.Equal(t, int32(40), inner.calls.Load())
}
