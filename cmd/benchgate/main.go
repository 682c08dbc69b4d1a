// Command benchgate compares two `go test -bench` outputs and fails when a
// tracked benchmark regressed beyond the threshold.
//
//	go test -run '^$' -bench . -count 6 ./ > new.txt
//	go run ./cmd/benchgate -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// tracked lists the credential hot paths and the units gated for each.
var tracked = map[string][]string{
	"BenchmarkValidateJWTOnly":         {"ns/op", "allocs/op"},
	"BenchmarkValidateStrict":          {"ns/op", "allocs/op"},
	"BenchmarkRefresh":                 {"ns/op"},
	"BenchmarkLogin":                   {"ns/op"},
	"BenchmarkMetricsIncParallel":      {"ns/op", "allocs/op"},
	"BenchmarkMetricsIncMixedParallel": {"allocs/op"},
}

// samples maps benchmark name to unit to observed values.
type samples map[string]map[string][]float64

type row struct {
	Benchmark string
	Unit      string
	Baseline  float64
	Candidate float64
	Delta     float64
}

type report struct {
	Rows     []row
	Failures []string
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)
	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if err := run(baselinePath, candidatePath, threshold, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "benchgate: %v\n", err)
		os.Exit(1)
	}
}

func run(baselinePath, candidatePath string, threshold float64, out io.Writer) error {
	if baselinePath == "" || candidatePath == "" {
		return errors.New("-baseline and -candidate are required")
	}
	if threshold < 0 {
		return errors.New("-threshold must be >= 0")
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		return fmt.Errorf("parse baseline: %w", err)
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	rep := compare(baseline, candidate, threshold)
	fmt.Fprintln(out, "benchmark unit baseline candidate delta")
	for _, r := range rep.Rows {
		fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", r.Benchmark, r.Unit, r.Baseline, r.Candidate, r.Delta*100)
	}
	if len(rep.Failures) > 0 {
		return fmt.Errorf("regression threshold exceeded:\n  - %s", strings.Join(rep.Failures, "\n  - "))
	}
	return nil
}

// compare gates every tracked benchmark and unit, in name order.
func compare(baseline, candidate samples, threshold float64) report {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var rep report
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				rep.Failures = append(rep.Failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian, candMedian := median(base), median(cand)
			if baseMedian <= 0 {
				// zero allocs stay gated: any allocation is a regression
				if candMedian > 0 {
					rep.Failures = append(rep.Failures, fmt.Sprintf("%s %s went from 0 to %.3f", name, unit, candMedian))
				}
				rep.Rows = append(rep.Rows, row{Benchmark: name, Unit: unit, Baseline: baseMedian, Candidate: candMedian})
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			rep.Rows = append(rep.Rows, row{Benchmark: name, Unit: unit, Baseline: baseMedian, Candidate: candMedian, Delta: delta})
			if delta > threshold {
				rep.Failures = append(rep.Failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return rep
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse reads benchmark lines such as
// "BenchmarkLogin-8  100  1234 ns/op  512 B/op  7 allocs/op".
func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := trimProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// trimProcs drops the -GOMAXPROCS suffix.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
