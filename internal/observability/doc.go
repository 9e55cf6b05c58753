// Package observability records what scheduling passes did. Pass outcomes
// are appended to a JSON Lines event log, metrics are derived from that
// log on demand, and diagnostic output goes through a zerolog logger
// configured from the log section of .blockplan.yaml.
package observability
