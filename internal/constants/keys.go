package constants

// Names of the keys held by the credential store.
//
//nolint:gosec // G101: these are key names, not credentials
const (
	KeyServiceMachineURL = "service-machine-url"
	KeyGitHubLogin       = "github-login"
	KeyGitHubToken       = "github-token"
	KeyMongoPublicKey    = "mongo-public-key"
	KeyMongoPrivateKey   = "mongo-private-key"
	KeyMongoGroupID      = "mongo-group-id"
	KeyMongoAppID        = "mongo-app-id"
	KeyMongoAppClientID  = "mongo-app-client-id"
	KeyMongoAPIKey       = "mongo-api-key"
	KeyMongoLocationURL  = "mongo-location-url"
	KeyTag               = "tag"
	KeyMasterPassword    = "master-password"
)

// CloudCredentialKeys lists the keys serialized into the cloud credentials envelope, in order.
var CloudCredentialKeys = []string{
	KeyGitHubLogin,
	KeyGitHubToken,
	KeyMongoAPIKey,
	KeyMongoAppClientID,
	KeyMongoAppID,
	KeyMongoGroupID,
	KeyMongoPrivateKey,
	KeyMongoPublicKey,
	KeyServiceMachineURL,
}

// Admin API resource names and fixed values used by the bootstrap.
const (
	GroupOwnerRole        = "GROUP_OWNER"
	APIKeyProviderType    = "api-key"
	APIKeyNamePrefix      = "ppp-"
	CloudCredentialsFunc  = "cloudCredentials"
	CloudCredentialsRoute = "/cloud_credentials"
	CloudCredentialsPath  = "cloud_credentials"
	EndpointNoValidation  = "NO_VALIDATION"
	StitchHostFragment    = "aws.stitch.mongodb"
	DataAPIHostFragment   = "aws.data.mongodb-api"
)
