// Package prometheus exposes engine metrics through client_golang.
//
// [Collector] reads the engine snapshot on every scrape and emits const
// counters plus native histograms. Register it on a registry you own, or use
// [Handler] for a private registry served with promhttp.
package prometheus
