package domain

import (
	"encoding/json"
	"time"
)

// Message types sent by the inspector. They follow the Redux DevTools protocol.
const (
	MessageStart    = "START"
	MessageStop     = "STOP"
	MessageAction   = "ACTION"
	MessageUpdate   = "UPDATE"
	MessageDispatch = "DISPATCH"
	MessageImport   = "IMPORT"
	MessageExport   = "EXPORT"
)

// Command types carried by a DISPATCH message.
const (
	CommandImportState    = "IMPORT_STATE"
	CommandJumpToAction   = "JUMP_TO_ACTION"
	CommandJumpToState    = "JUMP_TO_STATE"
	CommandLockChanges    = "LOCK_CHANGES"
	CommandPauseRecording = "PAUSE_RECORDING"
	CommandReorderAction  = "REORDER_ACTION"
	CommandRollback       = "ROLLBACK"
	CommandCommit         = "COMMIT"
	CommandReset          = "RESET"
	CommandSweep          = "SWEEP"
	CommandToggleAction   = "TOGGLE_ACTION"
)

// ConnectConfig describes a store to the inspector when a connection opens.
type ConnectConfig struct {
	Name             string   `json:"name"`
	InstanceID       string   `json:"instanceId"`
	ActionsAllowlist []string `json:"actionsAllowlist,omitempty"`
}

// DevToolAction is the outbound form of a change record.
type DevToolAction struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// DevToolMessage is an inbound command from the inspector.
// State carries a JSON document when the command refers to a state snapshot.
type DevToolMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
	State   string         `json:"state,omitempty"`
}

// EnvelopeKind tags wire frames exchanged between transports and the hub.
type EnvelopeKind string

const (
	KindConnect EnvelopeKind = "connect"
	KindInit    EnvelopeKind = "init"
	KindAction  EnvelopeKind = "action"
	KindCommand EnvelopeKind = "command"
)

// Envelope is the JSON frame used by the network transports.
type Envelope struct {
	Kind     EnvelopeKind    `json:"kind"`
	Instance string          `json:"instance"`
	Config   *ConnectConfig  `json:"config,omitempty"`
	Action   *DevToolAction  `json:"action,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Message  *DevToolMessage `json:"message,omitempty"`
	Time     time.Time       `json:"time"`
}
