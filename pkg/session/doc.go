/*
Package session serializes access to dialog sessions.

Every turn for a session runs under that session's lock, so two events for the
same user never interleave their load, transition and persist steps. Locks are
reference counted and dropped once nobody waits on them. An optional
ports.DistributedLocker extends the guarantee across replicas.
*/
package session
