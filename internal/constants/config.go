package constants

import "time"

// ConfigDirName is the name of the configuration directory in the user's home directory.
const ConfigDirName = "." + ProjectName

// ConfigFileName is the name of the global configuration file.
const ConfigFileName = "config.yaml"

// ConfigDirPath returns the full path to the global configuration directory.
func ConfigDirPath(homeDir string) string {
	return homeDir + "/" + ConfigDirName
}

// ConfigFilePath returns the full path to the global configuration file.
func ConfigFilePath(homeDir string) string {
	return ConfigDirPath(homeDir) + "/" + ConfigFileName
}

// ConfigDirPermissions is the file system permissions for config directory (0750).
const ConfigDirPermissions = 0o750

// ConfigFilePermissions is the file system permissions for config file (0600).
const ConfigFilePermissions = 0o600

// EnvPrefix is the prefix of every environment variable read by the configuration loader.
const EnvPrefix = "PPP"

// DefaultAdminAPIURL is the base URL of the cloud admin API reached through the relay.
const DefaultAdminAPIURL = "https://realm.mongodb.com/api/admin/v3.0"

// DefaultDataAPIHost is the host serving published HTTP endpoints of the cloud app.
const DefaultDataAPIHost = "https://data.mongodb-api.com"

// DefaultAppName is the fixed name of the cloud app the bootstrap looks for.
const DefaultAppName = "ppp"

// DefaultServicesTable is the DynamoDB table storing service documents.
const DefaultServicesTable = "ppp-services"

// DefaultKeyVaultPrefix is the SSM parameter path prefix of the credential store.
const DefaultKeyVaultPrefix = "/ppp/keys"

// KeyVaultFileName is the name of the file backend's key file in the config directory.
const KeyVaultFileName = "keys.yaml"

// DefaultRelayListen is the listen address of the relay server.
const DefaultRelayListen = ":9999"

// DefaultRequestTimeout is the default timeout of a single relayed call.
const DefaultRequestTimeout = 60 * time.Second

// KeyVaultBackend selects where the credential store persists its keys.
type KeyVaultBackend string

const (
	// KeyVaultMemory keeps keys in process memory.
	KeyVaultMemory KeyVaultBackend = "memory"
	// KeyVaultFile keeps keys in a YAML file readable only by the operator.
	KeyVaultFile KeyVaultBackend = "file"
	// KeyVaultSSM keeps keys in AWS Systems Manager Parameter Store.
	KeyVaultSSM KeyVaultBackend = "ssm"
	// KeyVaultRedis keeps keys in a Redis hash shared between operator machines.
	KeyVaultRedis KeyVaultBackend = "redis"
)

// DefaultClientAPIURL is the base URL of the cloud client API used to resolve app locations.
const DefaultClientAPIURL = "https://realm.mongodb.com/api/client/v2.0"

// Service document backends.
const (
	ServicesBackendDynamoDB = "dynamodb"
	ServicesBackendMemory   = "memory"
)
