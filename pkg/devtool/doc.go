/*
Package devtool mirrors stores to an external time-travel inspector.

A Bridge owns one ports.Extension. Attach connects a store to it: every
committed record is forwarded outward and, in two-way mode, inspector commands
(jump, import, rollback, toggle, ...) are applied back to the store through
ReplaceState.

# Echo suppression

Each attached store has a small state machine, Idle or ApplyingRemoteChange.
While a remote change is being applied the outbound forwarder drops records,
so the inspector never receives its own command back as a new action. Local
listeners still observe the change, tagged with a reserved action type
(domain.ActionDevToolJump and friends).

# Failure handling

A missing inspector, a failed connection or a malformed command never reaches
the application: they are logged and the store keeps working.
*/
package devtool
