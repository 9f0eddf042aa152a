/*
Package ports defines the driven ports (interfaces) between relite and the outside world.

These interfaces decouple the devtool bridge from concrete transports, so the
same bridge can talk to an in-process inspector, the relite hub over WebSocket
or a Redis pub/sub channel.

# Key Interfaces

  - Extension: opens a Connection to an inspector for one store instance.
  - Connection: sends Init/Send frames outward and delivers inbound DevToolMessages.

RunExtensionContract verifies that an Extension implementation behaves as the
bridge expects.
*/
package ports
