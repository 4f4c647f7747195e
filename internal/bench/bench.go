// Package bench measures how well the order parser's extraction step
// reproduces reference answers. Cases come from a CSV of request and
// answer_json columns; results go to a CSV report and a summary.
package bench

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/orderbot/internal/orderparse"
)

// Case is one benchmark row.
type Case struct {
	// Index is the zero-based data row number in the source file.
	Index    int
	Request  string
	Expected string
}

// ReadCases reads cases from CSV with a header row naming the "request" and
// "answer_json" columns. Rows where either is blank are skipped. A positive
// limit caps the number of data rows considered.
func ReadCases(r io.Reader, limit int) ([]Case, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("bench: read header: %w", err)
	}
	if len(header) > 0 {
		// Spreadsheet exports often start with a byte order mark.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	reqCol, ansCol := slices.Index(header, "request"), slices.Index(header, "answer_json")
	if reqCol < 0 || ansCol < 0 {
		return nil, errors.New(`bench: header must contain "request" and "answer_json"`)
	}

	var cases []Case
	for i := 0; limit <= 0 || i < limit; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bench: read row %d: %w", i, err)
		}
		req, ans := field(rec, reqCol), field(rec, ansCol)
		if req == "" || ans == "" {
			continue
		}
		cases = append(cases, Case{Index: i, Request: req, Expected: ans})
	}
	return cases, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Extractor is the parser step under test. *orderparse.Parser satisfies it.
type Extractor interface {
	Extract(ctx context.Context, utterance string) (orderparse.RawOrder, error)
}

var _ Extractor = (*orderparse.Parser)(nil)

// Result is the outcome of one case.
type Result struct {
	Case

	// Got is the canonical model answer as JSON, or {"error": ...} when
	// extraction failed.
	Got     string
	Match   bool
	Latency time.Duration

	// Diff is empty on a match, "error" when extraction failed.
	Diff string

	// ErrorKind and ErrorReason describe a failed extraction or a bad
	// reference answer.
	ErrorKind   string
	ErrorReason string
}

// Runner executes cases against an [Extractor].
type Runner struct {
	Extractor Extractor

	// Workers is the number of cases evaluated concurrently. Default: 1.
	Workers int

	// Progress, when set, is called after each finished case with the
	// number of finished cases so far. Calls are serialised.
	Progress func(done, total int, r Result)

	Logger *slog.Logger
}

// Run evaluates every case and returns the results in input order. It stops
// early only when ctx is cancelled.
func (rn *Runner) Run(ctx context.Context, cases []Case) ([]Result, error) {
	log := rn.Logger
	if log == nil {
		log = slog.Default()
	}

	results := make([]Result, len(cases))
	finished := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rn.Workers, 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for i := range finished {
			n++
			if rn.Progress != nil {
				rn.Progress(n, len(cases), results[i])
			}
		}
	}()

	for i, c := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = rn.eval(gctx, c)
			if results[i].ErrorKind != "" {
				log.Debug("benchmark case failed", "idx", c.Index, "kind", results[i].ErrorKind, "err", results[i].ErrorReason)
			}
			finished <- i
			return nil
		})
	}
	err := g.Wait()
	close(finished)
	<-done
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("bench: run: %w", err)
	}
	return results, nil
}

func (rn *Runner) eval(ctx context.Context, c Case) Result {
	res := Result{Case: c}

	start := time.Now()
	raw, err := rn.Extractor.Extract(ctx, c.Request)
	res.Latency = time.Since(start)
	if err != nil {
		res.Got = errorJSON(err)
		res.Diff = "error"
		res.ErrorKind = errorKind(err)
		res.ErrorReason = err.Error()
		return res
	}
	got := Canonicalize(raw)
	res.Got = mustJSON(got)

	expRaw, err := orderparse.DecodeReply(c.Expected)
	if err != nil {
		res.Diff = "bad_expected_json: " + err.Error()
		return res
	}
	res.Diff = Diff(Canonicalize(expRaw), got)
	res.Match = res.Diff == ""
	return res
}

// errorKind names the failure class for the report.
func errorKind(err error) string {
	var mre *orderparse.MalformedReplyError
	switch {
	case errors.As(err, &mre):
		return "malformed_reply"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "model_error"
	}
}

func errorJSON(err error) string {
	return mustJSON(map[string]string{"error": err.Error()})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return strconv.Quote(err.Error())
	}
	return string(b)
}
