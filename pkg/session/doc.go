/*
Package session owns access to conversation contexts.

Every turn on a session runs inside WithSession, which serializes turns for the
same session id in-process (a reference-counted mutex per session) and, when a
DistributedLocker is configured, across replicas. Inside the callback the Handle
reads and writes the ContextStore without re-locking, so get-or-create and the
final save of a turn are atomic with respect to other turns.
*/
package session
