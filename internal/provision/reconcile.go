package provision

import (
	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/constants"
)

// Action is the mutation needed to bring a remote resource to its desired state.
type Action int

const (
	// ActionNoOp means the resource already matches.
	ActionNoOp Action = iota
	// ActionEnable means the resource exists but is disabled.
	ActionEnable
	// ActionCreate means the resource does not exist.
	ActionCreate
)

func (a Action) String() string {
	switch a {
	case ActionNoOp:
		return "noop"
	case ActionEnable:
		return "enable"
	case ActionCreate:
		return "create"
	default:
		return "unknown"
	}
}

// ProviderSpec is the desired auth provider.
type ProviderSpec struct {
	Name string
	Type string
}

// APIKeyProvider is the auth provider the bootstrap requires.
var APIKeyProvider = ProviderSpec{
	Name: constants.APIKeyProviderType,
	Type: constants.APIKeyProviderType,
}

// Reconcile decides what to do with an observed provider. observed is nil when absent.
func Reconcile(observed *adminapi.AuthProvider, desired ProviderSpec) Action {
	switch {
	case observed == nil || observed.Type != desired.Type:
		return ActionCreate
	case observed.Disabled:
		return ActionEnable
	default:
		return ActionNoOp
	}
}

// FindProvider returns the first provider of the given type, or nil.
func FindProvider(providers []adminapi.AuthProvider, providerType string) *adminapi.AuthProvider {
	for i := range providers {
		if providers[i].Type == providerType {
			return &providers[i]
		}
	}
	return nil
}

// Payload is the create request for the desired provider. New providers are always enabled.
func (s ProviderSpec) Payload() adminapi.AuthProvider {
	return adminapi.AuthProvider{Name: s.Name, Type: s.Type, Disabled: false}
}
