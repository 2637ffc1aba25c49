// Package config loads filechanges settings from a YAML file, FILECHANGES_*
// environment variables and built-in defaults.
package config

import "time"

// Git source defaults.
const (
	DefaultGitBinary  = "git"
	DefaultGitBackend = BackendCLI
	DefaultGitBranch  = "HEAD"
)

// File source defaults.
const (
	DefaultFindBinary    = "find"
	DefaultFilesLister   = ListerCommand
	DefaultStateDir      = ""
	DefaultCodec         = CodecJSON
	DefaultWatchInterval = time.Duration(0)
)

// Output defaults.
const (
	DefaultOutputFormat     = "json"
	DefaultOutputColor      = true
	DefaultOutputSkipVendor = false
)

// Logging and metrics defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogJSON     = false
	DefaultMetricsAddr = ""
)
