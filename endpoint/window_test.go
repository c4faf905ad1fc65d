package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindow_emptyIsInfinite(t *testing.T) {
	w := NewWindow(4)
	require.Equal(t, Infinite, w.Avg())
	require.Equal(t, 0, w.Len())
}

func TestWindow_saturation(t *testing.T) {
	w := NewWindow(MaxWindow)
	for i := 0; i < MaxWindow; i++ {
		w.Push(10 * time.Second)
	}
	require.Equal(t, 10*time.Second, w.Avg())
	require.Equal(t, MaxWindow, w.Len())

	w.Push(MaxElapsed)
	avg := w.Avg()
	require.Greater(t, avg, 10*time.Second)
	require.Less(t, avg, MaxElapsed)

	for i := 0; i < MaxWindow-1; i++ {
		w.Push(MaxElapsed)
	}
	require.Equal(t, MaxElapsed, w.Avg())
}

func TestWindow_fifoEviction(t *testing.T) {
	w := NewWindow(2)
	w.Push(1 * time.Second)
	w.Push(3 * time.Second)
	require.Equal(t, 2*time.Second, w.Avg())

	w.Push(5 * time.Second)
	require.Equal(t, 4*time.Second, w.Avg())
	require.Equal(t, 2, w.Len())
}
