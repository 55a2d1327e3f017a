package provision

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/operation"
	"github.com/ppp/pppctl/internal/relay"
)

// SetupSucceeded is reported once the cloud app is ready.
const SetupSucceeded = "Cloud services are configured. Restart pppctl sessions to pick up the new keys."

// Field names reported by setup validation errors.
const (
	FieldMasterPassword    = "master-password"
	FieldServiceMachineURL = "service-machine-url"
	FieldGitHubToken       = "github-token"
	FieldPublicKey         = "mongo-public-key"
	FieldPrivateKey        = "mongo-private-key"
)

// SetupInput is what the operator provides to configure cloud services.
type SetupInput struct {
	MasterPassword    string
	ServiceMachineURL string
	GitHubToken       string
	PublicKey         string
	PrivateKey        string
}

func (in SetupInput) trimmed() SetupInput {
	return SetupInput{
		MasterPassword:    strings.TrimSpace(in.MasterPassword),
		ServiceMachineURL: strings.TrimSpace(in.ServiceMachineURL),
		GitHubToken:       strings.TrimSpace(in.GitHubToken),
		PublicKey:         strings.TrimSpace(in.PublicKey),
		PrivateKey:        strings.TrimSpace(in.PrivateKey),
	}
}

// Validate reports every empty field.
func (in SetupInput) Validate() error {
	in = in.trimmed()
	verr := &appErrors.ValidationError{}
	for _, f := range []struct{ name, value string }{
		{FieldMasterPassword, in.MasterPassword},
		{FieldServiceMachineURL, in.ServiceMachineURL},
		{FieldGitHubToken, in.GitHubToken},
		{FieldPublicKey, in.PublicKey},
		{FieldPrivateKey, in.PrivateKey},
	} {
		if f.value == "" {
			verr.Add(f.name, "required")
		}
	}
	return verr.OrNil()
}

// Connector reaches the admin API through the relay on the service machine.
type Connector interface {
	Ping(ctx context.Context, serviceMachineURL string) error
	Login(ctx context.Context, serviceMachineURL, publicKey, privateKey string) (AdminAPI, error)
}

// RelayConnector is the Connector backed by the relay and admin API clients.
type RelayConnector struct {
	AdminAPIURL string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Ping implements Connector.
func (c RelayConnector) Ping(ctx context.Context, serviceMachineURL string) error {
	return relay.NewClient(serviceMachineURL, c.Logger, relay.WithTimeout(c.Timeout)).Ping(ctx)
}

// Login implements Connector.
func (c RelayConnector) Login(ctx context.Context, serviceMachineURL, publicKey, privateKey string) (AdminAPI, error) {
	client := adminapi.New(relay.NewClient(serviceMachineURL, c.Logger, relay.WithTimeout(c.Timeout)),
		c.AdminAPIURL, c.Logger)
	token, err := client.Login(ctx, publicKey, privateKey)
	if err != nil {
		return nil, err
	}
	return client.WithToken(token), nil
}

// Setup checks the operator's credentials, stores them and bootstraps the cloud app.
type Setup struct {
	store     keyvault.Store
	connector Connector
	github    GitHubChecker
	loader    SourceLoader
	appName   string
	logger    *slog.Logger
	opts      []OrchestratorOption
}

// NewSetup creates a Setup. opts are passed to the Orchestrator.
func NewSetup(
	store keyvault.Store,
	connector Connector,
	github GitHubChecker,
	loader SourceLoader,
	appName string,
	log *slog.Logger,
	opts ...OrchestratorOption,
) *Setup {
	return &Setup{
		store:     store,
		connector: connector,
		github:    github,
		loader:    loader,
		appName:   appName,
		logger:    log,
		opts:      opts,
	}
}

// Run performs the whole setup as one operation reported to sink.
func (s *Setup) Run(ctx context.Context, in SetupInput, sink operation.Sink) error {
	return operation.Run(ctx, sink, SetupSucceeded, func(ctx context.Context, progress *operation.Progress) error {
		_, err := s.run(ctx, in, progress)
		return err
	})
}

func (s *Setup) run(ctx context.Context, in SetupInput, progress *operation.Progress) (ProjectContext, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, s.logger)
	if err := in.Validate(); err != nil {
		return ProjectContext{}, err
	}
	in = in.trimmed()

	if err := s.setKeys(ctx, map[string]string{
		constants.KeyMongoLocationURL: "",
		constants.KeyTag:              constants.Tag,
		constants.KeyMasterPassword:   in.MasterPassword,
	}); err != nil {
		return ProjectContext{}, err
	}

	origin, err := ServiceOrigin(in.ServiceMachineURL)
	if err != nil {
		return ProjectContext{}, appErrors.NewValidationError(FieldServiceMachineURL, "invalid or incomplete URL")
	}
	if err := s.connector.Ping(ctx, origin); err != nil {
		reqLogger.Debug("service machine ping failed", "url", origin, "error", err)
		return ProjectContext{}, appErrors.NewValidationError(FieldServiceMachineURL, "invalid URL")
	}
	if err := s.store.SetKey(ctx, constants.KeyServiceMachineURL, origin); err != nil {
		return ProjectContext{}, err
	}

	login, err := s.github.CheckToken(ctx, in.GitHubToken)
	if err != nil {
		return ProjectContext{}, asFieldError(err, FieldGitHubToken, "invalid token")
	}
	if err := s.setKeys(ctx, map[string]string{
		constants.KeyGitHubLogin: login,
		constants.KeyGitHubToken: in.GitHubToken,
	}); err != nil {
		return ProjectContext{}, err
	}

	api, err := s.connector.Login(ctx, origin, in.PublicKey, in.PrivateKey)
	if err != nil {
		return ProjectContext{}, asFieldError(err, FieldPrivateKey, "invalid admin API key pair")
	}
	if err := s.setKeys(ctx, map[string]string{
		constants.KeyMongoPublicKey:  in.PublicKey,
		constants.KeyMongoPrivateKey: in.PrivateKey,
	}); err != nil {
		return ProjectContext{}, err
	}

	pc, err := LoadProjectContext(ctx, s.store)
	if err != nil {
		return ProjectContext{}, err
	}
	return NewOrchestrator(api, s.store, s.loader, s.appName, s.logger, s.opts...).Bootstrap(ctx, pc, progress)
}

func (s *Setup) setKeys(ctx context.Context, keys map[string]string) error {
	for name, value := range keys {
		if err := s.store.SetKey(ctx, name, value); err != nil {
			return err
		}
	}
	return nil
}

// ServiceOrigin normalizes a service machine URL to its https origin.
func ServiceOrigin(raw string) (string, error) {
	u, err := url.Parse(config.NormalizeRelayURL(raw))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("URL has no host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// asFieldError turns a rejected credential into a validation error on field.
// Server-side failures stay remote call errors.
func asFieldError(err error, field, message string) error {
	if errors.Is(err, appErrors.ErrRemoteCall) && appErrors.GetStatusCode(err) < http.StatusInternalServerError {
		return appErrors.NewValidationError(field, message)
	}
	return err
}
