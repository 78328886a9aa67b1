// Package report assembles periodic client reports from a live health check,
// a long-window performance aggregation, the stored trend and the alert
// history of the period, and persists each one as an immutable row.
package report
