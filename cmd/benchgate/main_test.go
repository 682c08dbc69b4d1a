package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func benchOutput(scale float64) string {
	var b strings.Builder
	b.WriteString("goos: linux\npkg: github.com/Anonymus123-11/login-register\n")
	for _, run := range []float64{1, 1.1, 0.9} {
		line := func(name string, ns float64, allocs int) {
			fmt.Fprintf(&b, "%s-8 \t 1000 \t %.1f ns/op \t 64 B/op \t %d allocs/op\n", name, ns*scale*run, allocs)
		}
		line("BenchmarkValidateJWTOnly", 2000, 20)
		line("BenchmarkValidateStrict", 9000, 60)
		line("BenchmarkRefresh", 12000, 80)
		line("BenchmarkLogin", 3000000, 200)
		line("BenchmarkMetricsIncParallel", 3, 0)
		line("BenchmarkMetricsIncMixedParallel", 4, 0)
		line("BenchmarkUntracked", 1, 1)
	}
	b.WriteString("PASS\n")
	return b.String()
}

func TestParse(t *testing.T) {
	s, err := parse(strings.NewReader(benchOutput(1)))
	require.NoError(t, err)

	assert.Len(t, s["BenchmarkLogin"]["ns/op"], 3)
	assert.Equal(t, []float64{200, 200, 200}, s["BenchmarkLogin"]["allocs/op"])
	assert.NotContains(t, s, "BenchmarkUntracked")
}

func TestCompareWithinThreshold(t *testing.T) {
	base, err := parse(strings.NewReader(benchOutput(1)))
	require.NoError(t, err)
	cand, err := parse(strings.NewReader(benchOutput(1.1)))
	require.NoError(t, err)

	rep := compare(base, cand, defaultThreshold)
	assert.Empty(t, rep.Failures)
	assert.NotEmpty(t, rep.Rows)
}

func TestCompareFlagsRegression(t *testing.T) {
	base, err := parse(strings.NewReader(benchOutput(1)))
	require.NoError(t, err)
	cand, err := parse(strings.NewReader(benchOutput(2)))
	require.NoError(t, err)

	rep := compare(base, cand, defaultThreshold)
	require.NotEmpty(t, rep.Failures)
	assert.Contains(t, strings.Join(rep.Failures, "\n"), "BenchmarkLogin ns/op regressed")
}

func TestCompareMissingSamples(t *testing.T) {
	base, err := parse(strings.NewReader(benchOutput(1)))
	require.NoError(t, err)
	delete(base, "BenchmarkRefresh")

	rep := compare(base, base, defaultThreshold)
	assert.Contains(t, rep.Failures, "missing samples for BenchmarkRefresh ns/op")
}

func TestCompareZeroAllocBaseline(t *testing.T) {
	base := samples{}
	cand := samples{}
	for name, units := range tracked {
		base[name], cand[name] = map[string][]float64{}, map[string][]float64{}
		for _, unit := range units {
			base[name][unit] = []float64{1}
			cand[name][unit] = []float64{1}
		}
	}
	base["BenchmarkMetricsIncParallel"]["allocs/op"] = []float64{0}
	cand["BenchmarkMetricsIncParallel"]["allocs/op"] = []float64{1}

	rep := compare(base, cand, defaultThreshold)
	assert.Equal(t, []string{"BenchmarkMetricsIncParallel allocs/op went from 0 to 1.000"}, rep.Failures)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "old.txt")
	candPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(basePath, []byte(benchOutput(1)), 0o600))
	require.NoError(t, os.WriteFile(candPath, []byte(benchOutput(1)), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(basePath, candPath, defaultThreshold, &out))
	assert.Contains(t, out.String(), "BenchmarkValidateStrict ns/op")

	require.Error(t, run("", candPath, defaultThreshold, &out))
	require.Error(t, run(basePath, candPath, -1, &out))
	require.Error(t, run(filepath.Join(dir, "missing.txt"), candPath, defaultThreshold, &out))
}

func TestTrimProcsAndMedian(t *testing.T) {
	assert.Equal(t, "BenchmarkLogin", trimProcs("BenchmarkLogin-16"))
	assert.Equal(t, "BenchmarkLogin-x", trimProcs("BenchmarkLogin-x"))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 0.0, median(nil))
}
