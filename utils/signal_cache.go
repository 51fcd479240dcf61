package utils

import (
	"sync"
	"time"
)

// SignalCache keeps the most recent decoded values of each frame. The RX
// goroutine writes; the control loop reads consistent copies.
type SignalCache struct {
	mu     sync.Mutex
	frames map[string]cachedFrame
}

type cachedFrame struct {
	values map[string]float64
	at     time.Time
}

func NewSignalCache() *SignalCache {
	return &SignalCache{frames: map[string]cachedFrame{}}
}

// Update replaces the stored values of a frame.
func (c *SignalCache) Update(frameName string, values map[string]float64, at time.Time) {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	c.mu.Lock()
	c.frames[frameName] = cachedFrame{values: cp, at: at}
	c.mu.Unlock()
}

// Snapshot copies the named frames if every one has been received, and
// reports the age of the oldest.
func (c *SignalCache) Snapshot(now time.Time, frameNames ...string) (map[string]map[string]float64, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]map[string]float64, len(frameNames))
	var oldest time.Duration
	for _, name := range frameNames {
		f, ok := c.frames[name]
		if !ok {
			return nil, 0, false
		}
		cp := make(map[string]float64, len(f.values))
		for k, v := range f.values {
			cp[k] = v
		}
		out[name] = cp
		if age := now.Sub(f.at); age > oldest {
			oldest = age
		}
	}
	return out, oldest, true
}

// Lookup returns a copy of a single frame's values.
func (c *SignalCache) Lookup(frameName string) (map[string]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.frames[frameName]
	if !ok {
		return nil, false
	}
	cp := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		cp[k] = v
	}
	return cp, true
}
