// Package prober issues single, time-bounded calls to one client endpoint
// and normalises the response into a typed sample.
//
// Health mode calls GET {endpoint}/health and always yields a HealthSample:
// every failure (timeout, transport error, non-2xx, malformed body) becomes
// a sample with status down. Metrics mode calls GET {endpoint}/metrics with
// start_date/end_date query parameters and accepts either a JSON body or a
// Prometheus text exposition; failures are returned as errors wrapping
// types.ErrUpstreamUnavailable for the aggregator to skip.
//
// Authentication (API key, bearer token, basic) is applied by the shared
// authRoundTripper in client.go; one *http.Client is built by New and reused.
package prober
