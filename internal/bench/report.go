package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"
)

var reportHeader = []string{
	"idx", "request", "expected_json", "model_json", "match",
	"latency_ms", "diff", "error_kind", "error_reason",
}

// WriteReport writes one CSV row per result.
func WriteReport(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("bench: write report: %w", err)
	}
	for _, r := range results {
		match := "0"
		if r.Match {
			match = "1"
		}
		row := []string{
			strconv.Itoa(r.Index),
			r.Request,
			r.Expected,
			r.Got,
			match,
			strconv.FormatFloat(ms(r.Latency), 'f', 1, 64),
			r.Diff,
			r.ErrorKind,
			r.ErrorReason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("bench: write report: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("bench: write report: %w", err)
	}
	return nil
}

// Summary aggregates a benchmark run.
type Summary struct {
	Total   int
	Matched int
	Errors  int

	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
}

// Accuracy is Matched over Total, or 0 for an empty run.
func (s Summary) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// Summarize computes totals and latency statistics. Percentiles use the
// nearest-rank method.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	if s.Total == 0 {
		return s
	}
	lat := make([]time.Duration, 0, len(results))
	var sum time.Duration
	for _, r := range results {
		if r.Match {
			s.Matched++
		}
		if r.ErrorKind != "" {
			s.Errors++
		}
		lat = append(lat, r.Latency)
		sum += r.Latency
	}
	slices.Sort(lat)
	s.Mean = sum / time.Duration(len(lat))
	s.P50 = percentile(lat, 50)
	s.P95 = percentile(lat, 95)
	return s
}

// percentile returns the nearest-rank p-th percentile of sorted.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}

// Print writes the human-readable summary.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "==== SUMMARY ====")
	fmt.Fprintf(w, "Total: %d\n", s.Total)
	fmt.Fprintf(w, "Matched: %d  (%.1f%%)\n", s.Matched, s.Accuracy()*100)
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	fmt.Fprintf(w, "Latency: mean %.1f ms, p50 %.1f ms, p95 %.1f ms\n", ms(s.Mean), ms(s.P50), ms(s.P95))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
