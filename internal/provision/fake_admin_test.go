package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppp/pppctl/internal/adminapi"
)

// fakeAdmin is an in-memory admin API. failOn injects an error into the named call.
type fakeAdmin struct {
	mu        sync.Mutex
	profile   adminapi.Profile
	apps      []adminapi.App
	providers []adminapi.AuthProvider
	functions []adminapi.Function
	endpoints []adminapi.Endpoint
	sources   map[string]string
	apiKeys   []string
	nextID    int
	calls     []string
	mutations int
	failOn    map[string]error
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		profile: adminapi.Profile{Roles: []adminapi.Role{{RoleName: "GROUP_OWNER", GroupID: "g1"}}},
		apps:    []adminapi.App{{ID: "a1", ClientAppID: "ppp-abcde", Name: "ppp"}},
		sources: map[string]string{},
		failOn:  map[string]error{},
	}
}

func (f *fakeAdmin) record(call string, mutation bool) error {
	f.calls = append(f.calls, call)
	if err := f.failOn[call]; err != nil {
		return err
	}
	if mutation {
		f.mutations++
	}
	return nil
}

func (f *fakeAdmin) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeAdmin) Profile(context.Context) (*adminapi.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Profile", false); err != nil {
		return nil, err
	}
	p := f.profile
	return &p, nil
}

func (f *fakeAdmin) ListApps(context.Context, string) ([]adminapi.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListApps", false); err != nil {
		return nil, err
	}
	return append([]adminapi.App(nil), f.apps...), nil
}

func (f *fakeAdmin) ListAuthProviders(context.Context, string, string) ([]adminapi.AuthProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAuthProviders", false); err != nil {
		return nil, err
	}
	return append([]adminapi.AuthProvider(nil), f.providers...), nil
}

func (f *fakeAdmin) EnableAuthProvider(_ context.Context, _, _, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EnableAuthProvider", true); err != nil {
		return err
	}
	for i := range f.providers {
		if f.providers[i].ID == providerID {
			f.providers[i].Disabled = false
			return nil
		}
	}
	return fmt.Errorf("provider %s not found", providerID)
}

func (f *fakeAdmin) CreateAuthProvider(_ context.Context, _, _ string, p adminapi.AuthProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAuthProvider", true); err != nil {
		return err
	}
	p.ID = f.id("p")
	f.providers = append(f.providers, p)
	return nil
}

func (f *fakeAdmin) CreateAPIKey(_ context.Context, _, _, name string) (*adminapi.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAPIKey", true); err != nil {
		return nil, err
	}
	f.apiKeys = append(f.apiKeys, name)
	return &adminapi.APIKey{ID: f.id("k"), Name: name, Key: "app-key-" + name}, nil
}

func (f *fakeAdmin) ListFunctions(context.Context, string, string) ([]adminapi.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListFunctions", false); err != nil {
		return nil, err
	}
	return append([]adminapi.Function(nil), f.functions...), nil
}

func (f *fakeAdmin) DeleteFunction(_ context.Context, _, _, functionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteFunction", true); err != nil {
		return err
	}
	for i, fn := range f.functions {
		if fn.ID == functionID {
			f.functions = append(f.functions[:i], f.functions[i+1:]...)
			delete(f.sources, fn.Name)
			return nil
		}
	}
	return fmt.Errorf("function %s not found", functionID)
}

func (f *fakeAdmin) CreateFunction(_ context.Context, _, _ string, fn adminapi.NewFunction) (*adminapi.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateFunction", true); err != nil {
		return nil, err
	}
	if !fn.RunAsSystem {
		return nil, fmt.Errorf("function %s must run as system", fn.Name)
	}
	for _, existing := range f.functions {
		if existing.Name == fn.Name {
			return nil, fmt.Errorf("function %s already exists", fn.Name)
		}
	}
	created := adminapi.Function{ID: f.id("f"), Name: fn.Name}
	f.functions = append(f.functions, created)
	f.sources[fn.Name] = fn.Source
	return &created, nil
}

func (f *fakeAdmin) CreateEndpoint(_ context.Context, _, _ string, ep adminapi.Endpoint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateEndpoint", true); err != nil {
		return false, err
	}
	for _, existing := range f.endpoints {
		if existing.Route == ep.Route {
			return false, nil
		}
	}
	f.endpoints = append(f.endpoints, ep)
	return true, nil
}

func (f *fakeAdmin) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAdmin) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.mutations = 0
}

var _ AdminAPI = (*fakeAdmin)(nil)
