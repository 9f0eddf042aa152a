package domain

import "strings"

// ReservedPrefix marks action types that only the library itself may emit.
const ReservedPrefix = "@@"

// Synthetic action types used for records that do not come from the action table.
const (
	// ActionReplace tags records built for an explicit ReplaceState call.
	ActionReplace = "@@relite/REPLACE"

	ActionDevToolJump     = "@@relite/devtool/JUMP"
	ActionDevToolImport   = "@@relite/devtool/IMPORT"
	ActionDevToolRollback = "@@relite/devtool/ROLLBACK"
	ActionDevToolReset    = "@@relite/devtool/RESET"
	ActionDevToolReplay   = "@@relite/devtool/REPLAY"
)

// IsReserved reports whether an action type uses the reserved prefix.
func IsReserved(actionType string) bool {
	return strings.HasPrefix(actionType, ReservedPrefix)
}

// IsDevToolAction reports whether an action type was emitted by the devtool bridge.
func IsDevToolAction(actionType string) bool {
	return strings.HasPrefix(actionType, "@@relite/devtool/")
}
