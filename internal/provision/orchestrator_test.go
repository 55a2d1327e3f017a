package provision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppp/pppctl/internal/adminapi"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/keyvault"
	"github.com/ppp/pppctl/internal/operation"
	"github.com/ppp/pppctl/internal/testutil"
)

var fixedClock = func() time.Time { return time.UnixMilli(1700000000000) }

// seededStore holds the keys setup stores before the bootstrap runs.
func seededStore(t *testing.T) *keyvault.Memory {
	t.Helper()
	m := keyvault.NewMemory()
	for k, v := range map[string]string{
		constants.KeyGitHubLogin:       "octo-cat",
		constants.KeyGitHubToken:       "ghp-secret-token",
		constants.KeyMongoPublicKey:    "public-key-1",
		constants.KeyMongoPrivateKey:   "private-key-secret",
		constants.KeyServiceMachineURL: "https://relay.example.com",
		constants.KeyMasterPassword:    "master-pass-1",
		constants.KeyTag:               constants.Tag,
	} {
		require.NoError(t, m.SetKey(testutil.TestContext(), k, v))
	}
	return m
}

func stubCatalog(n int) []FunctionSpec {
	stub := Generated(func(context.Context) (string, error) { return "exports = function () {};", nil })
	catalog := make([]FunctionSpec, 0, n)
	for i := 0; i < n-1; i++ {
		catalog = append(catalog, FunctionSpec{Name: fmt.Sprintf("fn%d", i), Source: stub})
	}
	return append(catalog, FunctionSpec{Name: constants.CloudCredentialsFunc, Source: stub})
}

func runBootstrap(
	t *testing.T, o *Orchestrator, store keyvault.Store,
) (ProjectContext, *testutil.RecordingSink, error) {
	t.Helper()
	ctx := testutil.TestContext()
	sink := &testutil.RecordingSink{}
	var pc ProjectContext

	err := operation.Run(ctx, sink, "done", func(ctx context.Context, progress *operation.Progress) error {
		cached, err := LoadProjectContext(ctx, store)
		if err != nil {
			return err
		}
		pc, err = o.Bootstrap(ctx, cached, progress)
		return err
	})
	return pc, sink, err
}

func assertMonotonic(t *testing.T, percents []int) {
	t.Helper()
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress went backwards at %d: %v", i, percents)
	}
	for _, p := range percents {
		assert.LessOrEqual(t, p, 100)
	}
}

func TestBootstrap_FreshAccount(t *testing.T) {
	api := newFakeAdmin()
	store := seededStore(t)
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(), WithClock(fixedClock))

	pc, sink, err := runBootstrap(t, o, store)
	require.NoError(t, err)

	assert.Equal(t, ProjectContext{
		GroupID:     "g1",
		AppID:       "a1",
		AppClientID: "ppp-abcde",
		APIKey:      "app-key-ppp-1700000000000",
	}, pc)

	stored, err := LoadProjectContext(testutil.TestContext(), store)
	require.NoError(t, err)
	assert.Equal(t, pc, stored)

	catalog := Catalog(nil)
	assert.Len(t, api.functions, len(catalog))
	assert.Equal(t, len(catalog), api.count("CreateFunction"))
	assert.Zero(t, api.count("DeleteFunction"))
	require.Len(t, api.endpoints, 1)
	assert.Equal(t, constants.CloudCredentialsRoute, api.endpoints[0].Route)

	var credentialsID string
	for _, fn := range api.functions {
		if fn.Name == constants.CloudCredentialsFunc {
			credentialsID = fn.ID
		}
	}
	assert.Equal(t, credentialsID, api.endpoints[0].FunctionID)

	require.Len(t, api.providers, 1)
	assert.Equal(t, "api-key", api.providers[0].Type)
	assert.Equal(t, []string{"ppp-1700000000000"}, api.apiKeys)

	assert.Equal(t, "begin", sink.Calls[0])
	assert.Equal(t, []string{"succeed", "end"}, sink.Calls[len(sink.Calls)-2:])
	percents := sink.Percents()
	assertMonotonic(t, percents)
	assert.Equal(t, 0, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.Contains(t, sink.Labels(), "creating the app API key")
}

func TestBootstrap_ProgressCheckpoints(t *testing.T) {
	api := newFakeAdmin()
	api.providers = []adminapi.AuthProvider{{ID: "p1", Type: "api-key"}}
	api.functions = []adminapi.Function{
		{ID: "old1", Name: "fn0"},
		{ID: "old2", Name: "fn1"},
		{ID: "old3", Name: constants.CloudCredentialsFunc},
		{ID: "keep", Name: "custom"},
	}
	store := seededStore(t)
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(),
		WithCatalog(stubCatalog(3)), WithClock(fixedClock))

	_, sink, err := runBootstrap(t, o, store)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 5, 10, 15, 25, 30, 40, 50, 60, 70, 80, 90, 95, 100}, sink.Percents())
	assert.Equal(t, 3, api.count("DeleteFunction"))
	assert.Len(t, api.functions, 4, "functions outside the catalog are kept")
}

func TestBootstrap_ProgressForCatalogSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 16, 17, 29, 30, 31, 64} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			api := newFakeAdmin()
			catalog := stubCatalog(n)
			for i, spec := range catalog {
				api.functions = append(api.functions, adminapi.Function{ID: fmt.Sprintf("old%d", i), Name: spec.Name})
			}
			store := seededStore(t)
			o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(),
				WithCatalog(catalog), WithClock(fixedClock))

			_, sink, err := runBootstrap(t, o, store)
			require.NoError(t, err)

			percents := sink.Percents()
			assertMonotonic(t, percents)
			assert.Equal(t, 100, percents[len(percents)-1])
			assert.Equal(t, n, api.count("DeleteFunction"))
			assert.Equal(t, n, api.count("CreateFunction"))
		})
	}
}

func TestBootstrap_MissingApp(t *testing.T) {
	api := newFakeAdmin()
	api.apps = []adminapi.App{{ID: "a2", Name: "other"}}
	store := seededStore(t)
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger())

	_, sink, err := runBootstrap(t, o, store)

	testutil.AssertErrorType(t, err, appErrors.ErrMissingResource)
	assert.Same(t, err, sink.Failed)
	assert.Zero(t, api.count("ListAuthProviders"))
	assert.Zero(t, api.count("CreateFunction"))
	assert.Equal(t, []string{"fail", "end"}, sink.Calls[len(sink.Calls)-2:])

	_, ok, err := keyvault.Lookup(testutil.TestContext(), store, constants.KeyMongoAppID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBootstrap_Groups(t *testing.T) {
	tests := []struct {
		name      string
		roles     []adminapi.Role
		cached    string
		wantGroup string
		wantErr   error
	}{
		{
			name:    "no owned group",
			roles:   []adminapi.Role{{RoleName: "GROUP_READ_ONLY", GroupID: "g1"}},
			wantErr: appErrors.ErrMissingResource,
		},
		{
			name: "several owned groups",
			roles: []adminapi.Role{
				{RoleName: "GROUP_OWNER", GroupID: "g1"},
				{RoleName: "GROUP_OWNER", GroupID: "g2"},
			},
			wantErr: appErrors.ErrAmbiguousGroup,
		},
		{
			name: "cached group still owned",
			roles: []adminapi.Role{
				{RoleName: "GROUP_OWNER", GroupID: "g1"},
				{RoleName: "GROUP_OWNER", GroupID: "g2"},
			},
			cached:    "g2",
			wantGroup: "g2",
		},
		{
			name:      "cached group gone",
			roles:     []adminapi.Role{{RoleName: "GROUP_OWNER", GroupID: "g1"}},
			cached:    "g-deleted",
			wantGroup: "g1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAdmin()
			api.profile = adminapi.Profile{Roles: tt.roles}
			store := seededStore(t)
			if tt.cached != "" {
				require.NoError(t, store.SetKey(testutil.TestContext(), constants.KeyMongoGroupID, tt.cached))
			}
			o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(),
				WithCatalog(stubCatalog(2)))

			pc, _, err := runBootstrap(t, o, store)
			if tt.wantErr != nil {
				testutil.AssertErrorType(t, err, tt.wantErr)
				assert.Zero(t, api.count("ListApps"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGroup, pc.GroupID)

			stored, err := store.GetKey(testutil.TestContext(), constants.KeyMongoGroupID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGroup, stored)
		})
	}
}

func TestBootstrap_CachedAppKept(t *testing.T) {
	ctx := testutil.TestContext()
	api := newFakeAdmin()
	api.apps = []adminapi.App{
		{ID: "a1", ClientAppID: "ppp-abcde", Name: "ppp"},
		{ID: "a7", ClientAppID: "ppp-zzzzz", Name: "ppp-renamed"},
	}
	store := seededStore(t)
	require.NoError(t, store.SetKey(ctx, constants.KeyMongoAppID, "a7"))
	require.NoError(t, store.SetKey(ctx, constants.KeyMongoAppClientID, "ppp-zzzzz"))
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(), WithCatalog(stubCatalog(1)))

	pc, _, err := runBootstrap(t, o, store)
	require.NoError(t, err)
	assert.Equal(t, "a7", pc.AppID)
	assert.Equal(t, "ppp-zzzzz", pc.AppClientID)
}

func TestBootstrap_RerunKeepsEndpoint(t *testing.T) {
	api := newFakeAdmin()
	store := seededStore(t)
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger(), WithCatalog(stubCatalog(4)))

	_, _, err := runBootstrap(t, o, store)
	require.NoError(t, err)

	_, sink, err := runBootstrap(t, o, store)
	require.NoError(t, err, "an already published endpoint is not a failure")
	assert.Equal(t, "done", sink.Succeeded)
	assert.Len(t, api.endpoints, 1)
	assert.Len(t, api.functions, 4)
	assert.Equal(t, 2, api.count("CreateAPIKey"), "every run mints a fresh key")
}

func TestBootstrap_StopsAtFirstFailure(t *testing.T) {
	boom := appErrors.ErrRemoteCallFailed(500, "could not list auth providers", `{"error":"boom"}`)
	api := newFakeAdmin()
	api.failOn["ListAuthProviders"] = boom
	store := seededStore(t)
	o := NewOrchestrator(api, store, EmbeddedSources(), "ppp", testutil.SilentLogger())

	_, sink, err := runBootstrap(t, o, store)

	assert.Same(t, boom, err)
	assert.Same(t, boom, sink.Failed)
	assert.Zero(t, api.count("CreateAPIKey"))
	assert.Zero(t, api.count("ListFunctions"))
}
