// Package testutil provides testing utilities for Tickfold
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tickfold/tickfold/pkg/segment"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Seg builds a single-column float64 segment for the given index.
// Values default to float64(i) when vals is nil.
func Seg(t *testing.T, name string, index []int64, vals []float64) *segment.Segment {
	t.Helper()

	if vals == nil {
		vals = make([]float64, len(index))
		for i := range vals {
			vals[i] = float64(i)
		}
	}
	seg, err := segment.NewBuilder(index).Float64(name, vals).Build()
	if err != nil {
		t.Fatalf("building fixture segment: %v", err)
	}
	return seg
}

// Source wraps segments in a SliceSource for feeding the resample engine.
func Source(segs ...*segment.Segment) *segment.SliceSource {
	return segment.NewSliceSource(segs...)
}
