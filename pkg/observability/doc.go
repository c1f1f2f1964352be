/*
Package observability provides tools for monitoring the golem engine.

Metrics turns lifecycle hooks into Prometheus series, LoggingHooks writes an
audit line per transition and failed action, and Combine chains several hook
sets so they can be registered together.
*/
package observability
