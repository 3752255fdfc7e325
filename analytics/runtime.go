package analytics

import "time"

// Environment labels resolved into a transport mode.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// RuntimeDescriptor is a snapshot of the host runtime, resolved once by
// whatever integration wires up the SDK. The core never introspects
// ambient globals or environment state on its own, which keeps it
// portable and testable.
type RuntimeDescriptor struct {
	// Env is the host environment label: development, test or production.
	Env string

	// Runtime labels the executing runtime, e.g. "go", "node", "edge".
	Runtime string

	// Framework labels the host framework, e.g. "nextjs", "gin".
	Framework string

	UserAgent      string
	Language       string
	Timezone       string
	ConnectionType string

	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int

	PageTitle string
	PageURL   string
	Referrer  string

	// PageLoadTime is the measured load duration for the current page.
	// Zero or negative durations are treated as unknown.
	PageLoadTime time.Duration
}
