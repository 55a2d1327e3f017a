// Package constants defines global constants used throughout ppp.
// It includes version information, paths, and configuration keys.
package constants

var version = "0.0.0-development" // Updated by CI/CD pipeline at build time

// GetVersion returns the current version of pppctl.
func GetVersion() *string {
	return &version
}

// ProjectName is the name of the application
const ProjectName = "ppp"

// CLIName is the name of the CLI binary
const CLIName = "pppctl"

// Tag is the fixed protocol tag stored with the cloud credentials.
// Consumers of the credential envelope reject envelopes with a different tag.
const Tag = "ppp-2"

// Environment represents the execution environment (e.g., CLI, relay server).
type Environment string

// Environment types for logger configuration
const (
	Development Environment = "development"
	Production  Environment = "production"
	CLI         Environment = "cli"
)

// ConfigCtxKeyType is the type for the config context key
type ConfigCtxKeyType string

// ConfigCtxKey is the key used to store config in context
const ConfigCtxKey ConfigCtxKeyType = "config"

// StartTimeCtxKeyType is the type for start time context keys
type StartTimeCtxKeyType string

// StartTimeCtxKey is the key used to store the start time in context
const StartTimeCtxKey StartTimeCtxKeyType = "startTime"
