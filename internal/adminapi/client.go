// Package adminapi provides typed access to the cloud admin API.
// All calls go through the relay; failures are classified by the relay client.
package adminapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/relay"
)

// Client is an admin API client. The zero token is only good for Login.
type Client struct {
	relay     relay.Interface
	baseURL   string
	clientURL string
	token     string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClientAPIURL overrides the base URL of the client API.
func WithClientAPIURL(u string) Option {
	return func(c *Client) {
		c.clientURL = strings.TrimRight(u, "/")
	}
}

// New creates an admin API client rooted at baseURL.
func New(r relay.Interface, baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		relay:     r,
		baseURL:   strings.TrimRight(baseURL, "/"),
		clientURL: constants.DefaultClientAPIURL,
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client authorized with an access token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Login exchanges an API key pair for an access token.
func (c *Client) Login(ctx context.Context, publicKey, privateKey string) (string, error) {
	env, err := relay.NewEnvelope(http.MethodPost, c.baseURL+"/auth/providers/mongodb-cloud/login",
		loginRequest{Username: publicKey, APIKey: privateKey})
	if err != nil {
		return "", err
	}

	var out loginResponse
	if _, err := c.do(ctx, env, &out, relay.WithMessage("invalid admin API key pair")); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login response carries no access token")
	}
	return out.AccessToken, nil
}

// Profile fetches the caller's own profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if _, err := c.get(ctx, c.baseURL+"/auth/profile", &out, "could not fetch the admin profile"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListApps lists the apps of a group.
func (c *Client) ListApps(ctx context.Context, groupID string) ([]App, error) {
	var out []App
	if _, err := c.get(ctx, c.groupURL(groupID, "apps"), &out, "could not list apps"); err != nil {
		return nil, err
	}
	return out, nil
}

// AppLocation resolves where the app with the given client id is deployed.
func (c *Client) AppLocation(ctx context.Context, clientAppID string) (*Location, error) {
	var out Location
	u := c.clientURL + "/app/" + url.PathEscape(clientAppID) + "/location"
	if _, err := c.get(ctx, u, &out, "could not resolve the app location"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAuthProviders lists the auth providers of an app.
func (c *Client) ListAuthProviders(ctx context.Context, groupID, appID string) ([]AuthProvider, error) {
	var out []AuthProvider
	if _, err := c.get(ctx, c.appURL(groupID, appID, "auth_providers"), &out,
		"could not list auth providers"); err != nil {
		return nil, err
	}
	return out, nil
}

// EnableAuthProvider enables a disabled auth provider.
func (c *Client) EnableAuthProvider(ctx context.Context, groupID, appID, providerID string) error {
	env, err := relay.NewEnvelope(http.MethodPut,
		c.appURL(groupID, appID, "auth_providers", providerID, "enable"), nil)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, env, nil, relay.WithMessage("could not enable the API key provider"))
	return err
}

// CreateAuthProvider creates an auth provider.
func (c *Client) CreateAuthProvider(ctx context.Context, groupID, appID string, provider AuthProvider) error {
	env, err := relay.NewEnvelope(http.MethodPost, c.appURL(groupID, appID, "auth_providers"), provider)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, env, nil, relay.WithMessage("could not create the API key provider"))
	return err
}

// CreateAPIKey mints a new app API key.
func (c *Client) CreateAPIKey(ctx context.Context, groupID, appID, name string) (*APIKey, error) {
	env, err := relay.NewEnvelope(http.MethodPost, c.appURL(groupID, appID, "api_keys"),
		createAPIKeyRequest{Name: name})
	if err != nil {
		return nil, err
	}
	var out APIKey
	if _, err := c.do(ctx, env, &out, relay.WithMessage("could not create an app API key")); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFunctions lists the functions of an app.
func (c *Client) ListFunctions(ctx context.Context, groupID, appID string) ([]Function, error) {
	var out []Function
	if _, err := c.get(ctx, c.appURL(groupID, appID, "functions"), &out, "could not list functions"); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteFunction deletes a function by id.
func (c *Client) DeleteFunction(ctx context.Context, groupID, appID, functionID string) error {
	env, err := relay.NewEnvelope(http.MethodDelete, c.appURL(groupID, appID, "functions", functionID), nil)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, env, nil)
	return err
}

// CreateFunction creates a function and returns its record.
func (c *Client) CreateFunction(ctx context.Context, groupID, appID string, fn NewFunction) (*Function, error) {
	env, err := relay.NewEnvelope(http.MethodPost, c.appURL(groupID, appID, "functions"), fn)
	if err != nil {
		return nil, err
	}
	var out Function
	if _, err := c.do(ctx, env, &out); err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = fn.Name
	}
	return &out, nil
}

// CreateEndpoint publishes an HTTPS endpoint. created is false when the endpoint already exists.
func (c *Client) CreateEndpoint(ctx context.Context, groupID, appID string, ep Endpoint) (created bool, err error) {
	env, err := relay.NewEnvelope(http.MethodPost, c.appURL(groupID, appID, "endpoints"), ep)
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, env, nil, relay.AllowStatus(http.StatusConflict))
	if err != nil {
		return false, err
	}
	return resp.StatusCode != http.StatusConflict, nil
}

func (c *Client) get(ctx context.Context, u string, out any, message string) (*relay.Response, error) {
	env, err := relay.NewEnvelope(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, env, out, relay.WithMessage(message))
}

func (c *Client) do(ctx context.Context, env relay.Envelope, out any, opts ...relay.Option) (*relay.Response, error) {
	if c.token != "" {
		env = env.WithHeader(constants.AuthorizationHeader, "Bearer "+c.token)
	}
	logger.DeriveRequestLogger(ctx, c.logger).Debug("admin API call",
		"method", env.EffectiveMethod(), "path", strings.TrimPrefix(env.URL, c.baseURL))

	resp, err := c.relay.Relay(ctx, env, opts...)
	if err != nil {
		return resp, err
	}
	if out == nil || len(resp.Body) == 0 || resp.StatusCode >= http.StatusMultipleChoices {
		return resp, nil
	}
	return resp, resp.Decode(out)
}

func (c *Client) groupURL(groupID string, parts ...string) string {
	segments := append([]string{c.baseURL, "groups", url.PathEscape(groupID)}, escapeAll(parts)...)
	return strings.Join(segments, "/")
}

func (c *Client) appURL(groupID, appID string, parts ...string) string {
	return c.groupURL(groupID, append([]string{"apps", appID}, parts...)...)
}

func escapeAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = url.PathEscape(p)
	}
	return out
}
