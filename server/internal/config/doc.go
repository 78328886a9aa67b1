// Package config loads the service configuration from a YAML file.
//
// Sections:
//   - server:  HTTP port and API authentication (apikey | none)
//   - probe:   per-mode timeouts, fan-out bounds, optional per-host rate
//     limit, and the auth/TLS options used when calling client endpoints
//   - storage: memory or postgres backend and retention; the DSN comes from dsn_env
//   - alerts:  poll interval, cooldown (memory | redis) and the event sink
//     (log | nats | kafka | webhook)
//   - roi:     minutes saved per automation and hourly labour rate
//   - clients: optional seed list of clients and their systems
//
// Secrets are never read from the file itself: every *_env field names an
// environment variable. Load(path) applies defaults before unmarshalling,
// then validates. Watch reloads the file when it changes.
package config
