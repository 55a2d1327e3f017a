// Package provision bootstraps the cloud app: it discovers the project and app,
// reconciles the API key provider, mints an API key and replaces the function catalog.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/operation"
)

// AdminAPI is the subset of the admin API used by the bootstrap.
type AdminAPI interface {
	Profile(ctx context.Context) (*adminapi.Profile, error)
	ListApps(ctx context.Context, groupID string) ([]adminapi.App, error)
	ListAuthProviders(ctx context.Context, groupID, appID string) ([]adminapi.AuthProvider, error)
	EnableAuthProvider(ctx context.Context, groupID, appID, providerID string) error
	CreateAuthProvider(ctx context.Context, groupID, appID string, provider adminapi.AuthProvider) error
	CreateAPIKey(ctx context.Context, groupID, appID, name string) (*adminapi.APIKey, error)
	ListFunctions(ctx context.Context, groupID, appID string) ([]adminapi.Function, error)
	DeleteFunction(ctx context.Context, groupID, appID, functionID string) error
	CreateFunction(ctx context.Context, groupID, appID string, fn adminapi.NewFunction) (*adminapi.Function, error)
	CreateEndpoint(ctx context.Context, groupID, appID string, ep adminapi.Endpoint) (bool, error)
}

var _ AdminAPI = (*adminapi.Client)(nil)

// Progress checkpoints of the discovery stages.
const (
	progressProfile   = 5
	progressApp       = 10
	progressProviders = 15
	progressAPIKey    = 25
	progressDone      = 100
)

// Orchestrator runs the bootstrap stages strictly in order and stops at the first failure.
type Orchestrator struct {
	api     AdminAPI
	store   keyvault.Store
	sync    *Synchronizer
	catalog []FunctionSpec
	appName string
	now     func() time.Time
	logger  *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCatalog replaces the default function catalog.
func WithCatalog(catalog []FunctionSpec) OrchestratorOption {
	return func(o *Orchestrator) {
		o.catalog = catalog
	}
}

// WithClock sets the clock used to name API keys.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator looking for the app named appName.
func NewOrchestrator(
	api AdminAPI,
	store keyvault.Store,
	loader SourceLoader,
	appName string,
	log *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		api:     api,
		store:   store,
		sync:    NewSynchronizer(api, loader, log),
		catalog: Catalog(CloudCredentialsSource(store)),
		appName: appName,
		now:     time.Now,
		logger:  log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Bootstrap brings the remote app in line with the catalog. Cached identifiers in pc
// are reused while the remote side still has them. The returned context is fully populated.
func (o *Orchestrator) Bootstrap(
	ctx context.Context, pc ProjectContext, progress *operation.Progress,
) (ProjectContext, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, o.logger)
	progress.Set(0, "setting up the cloud app")

	stages := []struct {
		name string
		run  func(context.Context, *ProjectContext, *operation.Progress) error
	}{
		{"resolve profile", o.resolveGroup},
		{"resolve app", o.resolveApp},
		{"reconcile auth provider", o.reconcileProvider},
		{"mint API key", o.mintAPIKey},
		{"synchronize functions", o.synchronize},
	}

	for _, stage := range stages {
		reqLogger.Debug("bootstrap stage", "stage", stage.name)
		if err := stage.run(ctx, &pc, progress); err != nil {
			reqLogger.Error("bootstrap stage failed", "stage", stage.name, "error", err)
			return pc, err
		}
	}

	progress.Set(progressDone, "")
	reqLogger.Info("bootstrap complete", "groupID", pc.GroupID, "appID", pc.AppID)
	return pc, nil
}

func (o *Orchestrator) resolveGroup(ctx context.Context, pc *ProjectContext, progress *operation.Progress) error {
	profile, err := o.api.Profile(ctx)
	if err != nil {
		return err
	}
	progress.Set(progressProfile, "searching for the project")

	owned := profile.OwnedGroups(constants.GroupOwnerRole)
	if pc.GroupID != "" && slices.Contains(owned, pc.GroupID) {
		return nil
	}

	switch len(owned) {
	case 0:
		return appErrors.ErrResourceMissing("no project owned by the admin API key was found")
	case 1:
		pc.GroupID = owned[0]
	default:
		return appErrors.ErrGroupAmbiguous(
			fmt.Sprintf("the admin API key owns %d projects; exactly one is supported", len(owned)))
	}
	return o.store.SetKey(ctx, constants.KeyMongoGroupID, pc.GroupID)
}

func (o *Orchestrator) resolveApp(ctx context.Context, pc *ProjectContext, progress *operation.Progress) error {
	apps, err := o.api.ListApps(ctx, pc.GroupID)
	if err != nil {
		return err
	}
	progress.Set(progressApp, "")

	if pc.AppID != "" && pc.AppClientID != "" {
		if slices.ContainsFunc(apps, func(a adminapi.App) bool { return a.ID == pc.AppID }) {
			return nil
		}
	}

	idx := slices.IndexFunc(apps, func(a adminapi.App) bool { return a.Name == o.appName })
	if idx < 0 {
		return appErrors.ErrResourceMissing(fmt.Sprintf("app %q was not found in the project", o.appName))
	}
	pc.AppID = apps[idx].ID
	pc.AppClientID = apps[idx].ClientAppID

	if err := o.store.SetKey(ctx, constants.KeyMongoAppClientID, pc.AppClientID); err != nil {
		return err
	}
	return o.store.SetKey(ctx, constants.KeyMongoAppID, pc.AppID)
}

func (o *Orchestrator) reconcileProvider(
	ctx context.Context, pc *ProjectContext, progress *operation.Progress,
) error {
	providers, err := o.api.ListAuthProviders(ctx, pc.GroupID, pc.AppID)
	if err != nil {
		return err
	}
	progress.Set(progressProviders, "creating the app API key")

	observed := FindProvider(providers, APIKeyProvider.Type)
	action := Reconcile(observed, APIKeyProvider)
	logger.DeriveRequestLogger(ctx, o.logger).Debug("auth provider reconciled", "action", action.String())

	switch action {
	case ActionEnable:
		return o.api.EnableAuthProvider(ctx, pc.GroupID, pc.AppID, observed.ID)
	case ActionCreate:
		return o.api.CreateAuthProvider(ctx, pc.GroupID, pc.AppID, APIKeyProvider.Payload())
	default:
		return nil
	}
}

func (o *Orchestrator) mintAPIKey(ctx context.Context, pc *ProjectContext, progress *operation.Progress) error {
	name := fmt.Sprintf("%s%d", constants.APIKeyNamePrefix, o.now().UnixMilli())
	key, err := o.api.CreateAPIKey(ctx, pc.GroupID, pc.AppID, name)
	if err != nil {
		return err
	}
	progress.Set(progressAPIKey, "writing cloud functions")

	pc.APIKey = key.Key
	return o.store.SetKey(ctx, constants.KeyMongoAPIKey, pc.APIKey)
}

func (o *Orchestrator) synchronize(ctx context.Context, pc *ProjectContext, progress *operation.Progress) error {
	return o.sync.Sync(ctx, *pc, o.catalog, progress)
}
