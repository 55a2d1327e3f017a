package provision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/sealer"
)

const credentialsFunctionTemplate = "exports = function () { return { iv: '%s', data: '%s' }; };"

// CredentialEnvelope serializes the cloud credentials and the protocol tag.
// Keys are emitted in sorted order, so the envelope is stable for a given store.
func CredentialEnvelope(ctx context.Context, store keyvault.Store) ([]byte, error) {
	keys, err := keyvault.GetKeys(ctx, store, constants.CloudCredentialKeys...)
	if err != nil {
		return nil, err
	}
	keys[constants.KeyTag] = constants.Tag

	data, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential envelope: %w", err)
	}
	return data, nil
}

// RenderCredentialsFunction embeds a sealed payload into the credentials function template.
func RenderCredentialsFunction(sealed sealer.Sealed) string {
	return fmt.Sprintf(credentialsFunctionTemplate, sealed.IV, sealed.Data)
}

// CloudCredentialsSource generates the credentials function: the envelope sealed
// with the master password under a fresh IV.
func CloudCredentialsSource(store keyvault.Store) Generated {
	return func(ctx context.Context) (string, error) {
		password, err := store.GetKey(ctx, constants.KeyMasterPassword)
		if err != nil {
			return "", err
		}
		s, err := sealer.New(password)
		if err != nil {
			return "", err
		}
		envelope, err := CredentialEnvelope(ctx, store)
		if err != nil {
			return "", err
		}
		sealed, err := s.Seal(envelope)
		if err != nil {
			return "", err
		}
		return RenderCredentialsFunction(sealed), nil
	}
}

// CredentialsEndpoint is the HTTPS endpoint serving the credentials function.
func CredentialsEndpoint(functionID string) adminapi.Endpoint {
	return adminapi.Endpoint{
		Route:            constants.CloudCredentialsRoute,
		FunctionName:     constants.CloudCredentialsFunc,
		FunctionID:       functionID,
		HTTPMethod:       "GET",
		ValidationMethod: constants.EndpointNoValidation,
		RespondResult:    true,
	}
}

// LocationResolver resolves the deployment location of an app.
type LocationResolver interface {
	AppLocation(ctx context.Context, clientAppID string) (*adminapi.Location, error)
}

type credentialsString struct {
	ServiceMachineURL string `json:"s"`
	EndpointURL       string `json:"u"`
}

// CredentialsString builds the shareable string other ppp installations import:
// base64 of {s: service machine URL, u: credentials endpoint URL}.
// The app location is resolved once and cached in the store.
func CredentialsString(ctx context.Context, store keyvault.Store, resolver LocationResolver) (string, error) {
	keys, err := keyvault.GetKeys(ctx, store, constants.KeyServiceMachineURL, constants.KeyMongoAppClientID)
	if err != nil {
		return "", err
	}
	clientAppID := keys[constants.KeyMongoAppClientID]

	location, _, err := keyvault.Lookup(ctx, store, constants.KeyMongoLocationURL)
	if err != nil {
		return "", err
	}
	if location == "" {
		loc, err := resolver.AppLocation(ctx, clientAppID)
		if err != nil {
			return "", err
		}
		if loc.Hostname == "" {
			return "", appErrors.ErrResourceMissing("the app location has no hostname")
		}
		location = strings.TrimRight(loc.Hostname, "/")
		if err := store.SetKey(ctx, constants.KeyMongoLocationURL, location); err != nil {
			return "", err
		}
	}

	endpoint := strings.Replace(location, constants.StitchHostFragment, constants.DataAPIHostFragment, 1) +
		"/app/" + clientAppID + "/endpoint/" + constants.CloudCredentialsPath

	data, err := json.Marshal(credentialsString{
		ServiceMachineURL: keys[constants.KeyServiceMachineURL],
		EndpointURL:       endpoint,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials string: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
