// Package logstats aggregates line-oriented access-log metrics from a
// stream: cumulative transferred size plus per-status-code counts, with a
// snapshot emitted every ten accepted input lines.
package logstats

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

// linePattern matches the expected log format:
// <host> - [<timestamp>] "GET /projects/260 HTTP/1.1" <status> <size>
var linePattern = regexp.MustCompile(
	`^(\S+) - \[(.+)\] "GET /projects/260 HTTP/1\.1" (\d{3}|\w+) (\d{1,12})$`,
)

// trackedStatusCodes are the only status codes counted individually.
var trackedStatusCodes = []int{200, 301, 400, 401, 403, 404, 405, 500}

// snapshotInterval is the number of lines between automatic metric dumps.
const snapshotInterval = 10

// Aggregator accumulates metrics from parsed log lines. It is safe for
// concurrent use so a signal handler can snapshot while input is processed.
type Aggregator struct {
	mu           sync.Mutex
	totalSize    int64
	statusCounts map[int]int64
	lines        int
	out          io.Writer
}

// NewAggregator creates an aggregator writing snapshots to out.
func NewAggregator(out io.Writer) *Aggregator {
	counts := make(map[int]int64, len(trackedStatusCodes))
	for _, code := range trackedStatusCodes {
		counts[code] = 0
	}
	return &Aggregator{
		statusCounts: counts,
		out:          out,
	}
}

// ProcessLine parses one input line and folds it into the metrics. Lines that
// do not match the expected format are counted but otherwise ignored.
// Returns true when a snapshot interval was crossed.
func (a *Aggregator) ProcessLine(line string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lines++

	if m := linePattern.FindStringSubmatch(line); m != nil {
		if size, err := strconv.ParseInt(m[4], 10, 64); err == nil {
			a.totalSize += size
		}
		if code, err := strconv.Atoi(m[3]); err == nil {
			if _, tracked := a.statusCounts[code]; tracked {
				a.statusCounts[code]++
			}
		}
	}

	return a.lines%snapshotInterval == 0
}

// WriteMetrics prints the total size and the non-zero status counts in
// ascending code order.
func (a *Aggregator) WriteMetrics() {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.out, "File size: %d\n", a.totalSize)

	codes := make([]int, 0, len(a.statusCounts))
	for code := range a.statusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	for _, code := range codes {
		if a.statusCounts[code] > 0 {
			fmt.Fprintf(a.out, "%d: %d\n", code, a.statusCounts[code])
		}
	}
}

// TotalSize returns the cumulative file size seen so far.
func (a *Aggregator) TotalSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalSize
}

// Count returns the number of occurrences of a tracked status code.
func (a *Aggregator) Count(code int) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusCounts[code]
}

// Run consumes r line by line, emitting a snapshot every ten lines and a
// final one at end of input.
func (a *Aggregator) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if a.ProcessLine(scanner.Text()) {
			a.WriteMetrics()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	a.WriteMetrics()
	return nil
}
