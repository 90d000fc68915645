// Package metrics registers the Prometheus collectors this module exposes:
// heap allocation counters, shard lookup outcomes, executor row/timing
// histograms, transaction/commit counters, and connection pool gauges
// sampled on a tick by Collector. Handler serves them for scraping; Timer
// helps time an operation and observe it into a histogram.
package metrics
