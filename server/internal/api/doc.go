// Package api implements the HTTP REST API for clientpulse-server.
//
// New(engine, auth) returns an http.Handler that serves:
//
//	GET  /healthz                                     liveness probe
//	GET  /metrics                                     Prometheus self-instrumentation
//	GET  /api/v1/status                               all-clients dashboard
//	GET  /api/v1/trends                               system-wide daily trends (?days=, default 30)
//	GET  /api/v1/clients                              registered clients
//	POST /api/v1/clients                              register a client, returns its first health check
//	GET  /api/v1/clients/{id}/details                 stored history: 24h samples, 30d rollups, recent alerts
//	GET  /api/v1/clients/{id}/health                  live health check
//	GET  /api/v1/clients/{id}/performance             performance, ROI and trends (?timeframe=24h|7d|30d|90d)
//	PUT  /api/v1/clients/{id}/alerts/{metric}         create or replace an alert threshold
//	POST /api/v1/clients/{id}/alerts/{metric}/test    evaluate a threshold without storing it
//	POST /api/v1/clients/{id}/reports                 generate and store a report
//	GET  /api/v1/clients/{id}/reports                 stored reports, newest first (?limit=)
//
// Everything under /api/v1 passes through the auth middleware. Responses are
// JSON; failures carry {"error": "..."} with a status derived from the error
// class (not found 404, configuration 400, anything else 500).
package api
