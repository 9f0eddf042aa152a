/*
Package domain contains the core types shared by every relite package.

It is kept free of behaviour and external dependencies: the store engine, the
registry and the devtool bridge all speak in these types.

# Key Entities

  - ChangeRecord: the immutable audit record of one committed transition.
  - Errors: sentinel values matched with errors.Is.
  - Reserved action types: synthetic names used for records that no action produced.
  - DevTool wire types: ConnectConfig, DevToolAction, DevToolMessage and Envelope.
*/
package domain
