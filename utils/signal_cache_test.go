package utils

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestSignalCache_SnapshotNeedsEveryFrame(t *testing.T) {
	c := NewSignalCache()
	t0 := time.Unix(100, 0)

	c.Update("A", map[string]float64{"x": 1}, t0)
	_, _, ok := c.Snapshot(t0, "A", "B")
	assert.Assert(t, !ok)

	c.Update("B", map[string]float64{"y": 2}, t0.Add(50*time.Millisecond))
	got, age, ok := c.Snapshot(t0.Add(100*time.Millisecond), "A", "B")
	assert.Assert(t, ok)
	assert.Equal(t, age, 100*time.Millisecond)
	assert.DeepEqual(t, got, map[string]map[string]float64{"A": {"x": 1}, "B": {"y": 2}})
}

func TestSignalCache_ReturnsCopies(t *testing.T) {
	c := NewSignalCache()
	in := map[string]float64{"x": 1}
	c.Update("A", in, time.Now())
	in["x"] = 5

	got, ok := c.Lookup("A")
	assert.Assert(t, ok)
	assert.Equal(t, got["x"], 1.0)

	got["x"] = 9
	again, _ := c.Lookup("A")
	assert.Equal(t, again["x"], 1.0)

	_, ok = c.Lookup("missing")
	assert.Assert(t, !ok)
}
