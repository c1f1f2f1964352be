// Package channel holds the messaging channel adapters bundled with golem and
// the registry that maps sessions to them.
package channel
