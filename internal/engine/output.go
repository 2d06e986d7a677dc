package engine

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// The speaker is process-wide. Both drivers mix through it at a fixed
// output rate; tracks at other rates are resampled.
const outputRate = beep.SampleRate(44100)

const defaultCacheMs = 100

var (
	outputMu    sync.Mutex
	outputReady bool
)

// initOutput initializes the speaker once. cacheMs sizes the prebuffer;
// the first initializer wins, later callers share the same output.
func initOutput(cacheMs int) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if outputReady {
		return nil
	}
	if cacheMs <= 0 {
		cacheMs = defaultCacheMs
	}
	buf := outputRate.N(time.Duration(cacheMs) * time.Millisecond)
	if err := speaker.Init(outputRate, buf); err != nil {
		return err
	}
	outputReady = true
	return nil
}
