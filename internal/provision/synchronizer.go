package provision

import (
	"context"
	"log/slog"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/operation"
)

// Progress checkpoints of the function catalog stage.
const (
	progressFunctionsListed = 30
	progressFunctionsBudget = 30
	progressEndpoint        = 95
)

// Synchronizer replaces the remote functions of the catalog and publishes the credentials endpoint.
type Synchronizer struct {
	api    AdminAPI
	loader SourceLoader
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer resolving static sources through loader.
func NewSynchronizer(api AdminAPI, loader SourceLoader, log *slog.Logger) *Synchronizer {
	return &Synchronizer{api: api, loader: loader, logger: log}
}

// Sync deletes every remote function named in catalog, recreates the whole catalog
// and publishes the credentials endpoint. A failure midway leaves the deleted
// functions missing until the next successful run.
func (s *Synchronizer) Sync(
	ctx context.Context, pc ProjectContext, catalog []FunctionSpec, progress *operation.Progress,
) error {
	reqLogger := logger.DeriveRequestLogger(ctx, s.logger)
	if len(catalog) == 0 {
		return appErrors.ErrInternalError("the function catalog is empty", nil)
	}
	step := progressFunctionsBudget / len(catalog)

	remote, err := s.api.ListFunctions(ctx, pc.GroupID, pc.AppID)
	if err != nil {
		return err
	}
	progress.Set(progressFunctionsListed, "")

	wanted := make(map[string]bool, len(catalog))
	for _, spec := range catalog {
		wanted[spec.Name] = true
	}

	for _, fn := range remote {
		if !wanted[fn.Name] {
			continue
		}
		if err := s.api.DeleteFunction(ctx, pc.GroupID, pc.AppID, fn.ID); err != nil {
			return err
		}
		reqLogger.Debug("function deleted", "name", fn.Name, "id", fn.ID)
		progress.Advance(step, "")
	}

	created := make(map[string]string, len(catalog))
	for _, spec := range catalog {
		source, err := resolveSource(ctx, s.loader, spec.Source)
		if err != nil {
			return err
		}
		fn, err := s.api.CreateFunction(ctx, pc.GroupID, pc.AppID, adminapi.NewFunction{
			Name:        spec.Name,
			Source:      source,
			RunAsSystem: true,
		})
		if err != nil {
			return err
		}
		created[spec.Name] = fn.ID
		reqLogger.Debug("function created", "name", spec.Name, "id", fn.ID)
		progress.Advance(step, "")
	}

	progress.Set(progressEndpoint, "saving cloud keys")
	return s.PublishEndpoint(ctx, pc, created)
}

// PublishEndpoint creates the credentials endpoint bound to the freshly created
// credentials function. An existing endpoint counts as published.
func (s *Synchronizer) PublishEndpoint(ctx context.Context, pc ProjectContext, created map[string]string) error {
	functionID := created[constants.CloudCredentialsFunc]
	if functionID == "" {
		return appErrors.ErrResourceMissing("the credentials function was not created")
	}

	ok, err := s.api.CreateEndpoint(ctx, pc.GroupID, pc.AppID, CredentialsEndpoint(functionID))
	if err != nil {
		return err
	}
	reqLogger := logger.DeriveRequestLogger(ctx, s.logger)
	if !ok {
		reqLogger.Info("credentials endpoint already published", "route", constants.CloudCredentialsRoute)
		return nil
	}
	reqLogger.Info("credentials endpoint published", "route", constants.CloudCredentialsRoute)
	return nil
}
