/*
Package session implements the shared session registry.

The registry maps a call's connection ID to transient bookkeeping (current
node, start time, voice backend, accumulated state) so external observers
(the dashboard) can poll call progress without coupling the flow engine to
any transport. Entries live only for the duration of a call: a disconnect
removes the session and nothing is recovered.

All registry operations are idempotent. Updating or removing an unknown
session ID is a no-op, which makes stale notifications from a closing call
harmless.
*/
package session
