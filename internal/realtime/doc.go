// Package realtime implements the live side of the portal: a connection
// registry mapping each authenticated user to at most one open transport
// handle, the identity handshake that admits connections into it, and the
// dispatcher that pushes freshly committed notifications to whoever is
// online.
//
// Delivery is best effort. A push to an offline user is a no-op and a push
// that cannot be enqueued is logged and counted, never retried. The
// notifications table stays the source of truth; clients catch up through
// the HTTP listing on reconnect.
//
// Frames travel as JSON text messages shaped {"event": <name>, "data": <payload>}.
package realtime
