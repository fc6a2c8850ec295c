package config

const (
	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Assets
	DefaultPartition      = "aws"
	DefaultObjectEndpoint = "s3.amazonaws.com"

	// EnvConfigPath overrides the global config file location. The other
	// CXCTL_* variables are bound to flags by the CLI.
	EnvConfigPath = "CXCTL_CONFIG"
)
