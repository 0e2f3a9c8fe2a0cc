// Package observability records fenrir pipeline events as JSON Lines and
// derives metrics, alerts and the per-task audit log from them.
package observability
