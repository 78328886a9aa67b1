// Package alerts evaluates per-client alert thresholds. Metric values are
// resolved live from the aggregators, compared against the configured
// threshold, and firing evaluations are appended to history and handed to an
// event sink (log, NATS, Kafka or HTTP webhook). A Poller drives scheduled
// evaluation; cooldown suppresses repeats per (client, metric).
package alerts
