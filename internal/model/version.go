package model

// Version constants for stored results and the engine.
const (
	// SchemaVersion is the version of the persisted result layout.
	SchemaVersion = "1"

	// EngineVersion is the labstat engine version.
	EngineVersion = "0.3.0"
)
