package provision

import (
	"context"

	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/keyvault"
)

// ProjectContext holds the remote identifiers a bootstrap run discovers.
// Once set, a field is only replaced when the remote resource it names is gone.
type ProjectContext struct {
	GroupID     string
	AppID       string
	AppClientID string
	APIKey      string
}

// LoadProjectContext reads the cached identifiers. Unset keys stay empty.
func LoadProjectContext(ctx context.Context, store keyvault.Store) (ProjectContext, error) {
	var pc ProjectContext
	fields := []struct {
		key string
		dst *string
	}{
		{constants.KeyMongoGroupID, &pc.GroupID},
		{constants.KeyMongoAppID, &pc.AppID},
		{constants.KeyMongoAppClientID, &pc.AppClientID},
		{constants.KeyMongoAPIKey, &pc.APIKey},
	}
	for _, f := range fields {
		v, _, err := keyvault.Lookup(ctx, store, f.key)
		if err != nil {
			return ProjectContext{}, err
		}
		*f.dst = v
	}
	return pc, nil
}
