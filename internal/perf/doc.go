// Package perf holds throughput and latency budgets for the ledger and its
// background jobs. It only contains tests and benchmarks.
package perf
