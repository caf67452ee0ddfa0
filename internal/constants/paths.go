package constants

// Directory and file layout under the slipway home directory (~/.slipway).
const (
	// SlipwayHome is the default home directory name, relative to $HOME.
	SlipwayHome = ".slipway"

	// RunsDir holds one directory per pipeline run.
	RunsDir = "runs"

	// ArtifactsDir holds content-addressed artifact blobs.
	ArtifactsDir = "artifacts"

	// SecretsDir holds per-target credential files.
	SecretsDir = "secrets"

	// DeploymentsDir holds deployment request state files.
	DeploymentsDir = "deployments"

	// LogsDir holds the rotating CLI log.
	LogsDir = "logs"

	// RunFileName is the JSON state file for a run.
	RunFileName = "run.json"

	// RunLogFileName is the JSON-lines log file for a run.
	RunLogFileName = "run.log"

	// DeploymentFileName is the JSON state file for a deployment request.
	DeploymentFileName = "deployment.json"

	// CLILogFileName is the rotating global log file.
	CLILogFileName = "slipway.log"
)

// Log rotation settings for the global CLI log.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated log files.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)
