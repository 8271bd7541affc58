package series

import (
	"testing"
	"time"

	"fx-data/internal/model"
)

const (
	benchBarsOneYear = 260 * 1440 // ~374k bars, FX trades ~260 days a year
	benchChunk       = 99999
)

// buildChunks simulates a backfill: newest chunk first, each chunk one bar overlapping the next.
func buildChunks(total, chunk int) [][]model.Bar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	var chunks [][]model.Bar
	for end := total; end > 0; end -= chunk - 1 {
		from := end - chunk
		if from < 0 {
			from = 0
		}
		c := make([]model.Bar, 0, end-from)
		for j := from; j < end; j++ {
			c = append(c, model.Bar{
				Timestamp: start.Add(time.Duration(j) * time.Minute).UnixMilli(),
				Open:      1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 42,
			})
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// BenchmarkStitchMerge stitches a year of chunks with Merge.
func BenchmarkStitchMerge(b *testing.B) {
	chunks := buildChunks(benchBarsOneYear, benchChunk)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var acc []model.Bar
		for _, c := range chunks {
			acc, _ = Merge(acc, c, PreferFetched)
		}
		_ = acc
	}
}

// BenchmarkAppendNoPrealloc collects bars without pre-alloc.
func BenchmarkAppendNoPrealloc(b *testing.B) {
	for i := 0; i < b.N; i++ {
		var all []model.Bar
		for j := 0; j < benchBarsOneYear; j++ {
			all = append(all, model.Bar{Timestamp: int64(j), Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 42})
		}
		_ = all
	}
}

// BenchmarkAppendPrealloc collects bars with EstimatedBars capacity.
func BenchmarkAppendPrealloc(b *testing.B) {
	to := time.Now()
	from := to.AddDate(-1, 0, 0)
	n := EstimatedBars(from, to, model.Minute)
	for i := 0; i < b.N; i++ {
		all := make([]model.Bar, 0, n)
		for j := 0; j < benchBarsOneYear; j++ {
			all = append(all, model.Bar{Timestamp: int64(j), Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 42})
		}
		_ = all
	}
}
