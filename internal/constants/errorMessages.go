package constants

// Notes recorded on checklist runs closed without a signature.
const (
	MsgSkippedByPilot    = "Checklist skipped by pilot"
	MsgClosedDanglingRun = "Post-flight run force-closed"
)
