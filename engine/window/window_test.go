package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineWindowDefaults(t *testing.T) {
	w := newEngineWindow(WithTitle("sand"))
	assert.Equal(t, "sand", w.title)
	assert.Equal(t, 1280, w.Width())
	assert.Equal(t, 720, w.Height())
	assert.Equal(t, [4]int{320, 200, 3840, 2160}, [4]int{w.minWidth, w.minHeight, w.maxWidth, w.maxHeight})
}

func TestNewEngineWindowFitsSizeLimits(t *testing.T) {
	w := newEngineWindow(WithWidth(5000), WithHeight(100), WithMinSize(640, 480), WithMaxSize(1920, 1080))
	assert.Equal(t, 1920, w.Width())
	assert.Equal(t, 480, w.Height())

	// a maximum below the minimum collapses onto the minimum
	w = newEngineWindow(WithMinSize(800, 600), WithMaxSize(400, 300))
	assert.Equal(t, [4]int{800, 600, 800, 600}, [4]int{w.minWidth, w.minHeight, w.maxWidth, w.maxHeight})
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 600, w.Height())
}
