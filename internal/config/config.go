package config

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultEventBuffer is the default capacity of the event dispatcher
	// queue. Events beyond this are dropped, not blocked on.
	DefaultEventBuffer = 256
)
