// Package prometheus exports engine counters through client_golang.
//
// [Collector] implements prometheus.Collector and reads a fresh engine snapshot on
// every scrape. Counter names are prefixed resumeauth_ and end in _total; the only
// histogram is resumeauth_verify_latency_seconds. Nothing is registered globally;
// use [Handler] or register the Collector on your own registry.
package prometheus
