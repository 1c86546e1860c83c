package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAveragesSamples(t *testing.T) {
	var reports []Report
	p := NewProfiler(WithInterval(time.Hour), WithQuiet(), WithOnReport(func(r Report) {
		reports = append(reports, r)
	}))

	assert.False(t, p.Record(Sample{Counts: [3]uint32{10, 20, 30}, Culled: 4, Split: 2 * time.Millisecond}))
	assert.False(t, p.Record(Sample{Counts: [3]uint32{30, 40, 50}, Culled: 6, Split: 4 * time.Millisecond}))
	require.Empty(t, reports)

	p.updateInterval = 0
	assert.True(t, p.Record(Sample{Counts: [3]uint32{20, 30, 40}, Culled: 5, Split: 3 * time.Millisecond}))
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, 3, r.Frames)
	assert.Equal(t, [3]float64{20, 30, 40}, r.Counts)
	assert.Equal(t, float64(5), r.Culled)
	assert.Equal(t, 3*time.Millisecond, r.Split)
	assert.Equal(t, r, p.Last())
	assert.Contains(t, r.Summary(), "20 inst, 30 imp, 40 far, 5 culled")
}

func TestTickResetsInterval(t *testing.T) {
	p := NewProfiler(WithInterval(0), WithQuiet())
	p.Record(Sample{Counts: [3]uint32{1, 1, 1}})
	assert.True(t, p.Tick())
	assert.Equal(t, 1, p.Last().Frames)
	assert.Equal(t, [3]float64{}, p.Last().Counts, "frames without samples report no work")
}

func TestFlushIgnoresInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Hour), WithQuiet())
	assert.Equal(t, Report{}, p.Flush())

	p.Record(Sample{Counts: [3]uint32{2, 4, 6}, Compose: time.Millisecond})
	p.Record(Sample{Counts: [3]uint32{4, 8, 12}, Compose: 3 * time.Millisecond})
	r := p.Flush()
	assert.Equal(t, 2, r.Frames)
	assert.Equal(t, [3]float64{3, 6, 9}, r.Counts)
	assert.Equal(t, 2*time.Millisecond, r.Compose)
	assert.Equal(t, Report{}, p.Flush())
}
