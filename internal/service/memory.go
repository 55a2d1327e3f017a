package service

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
)

// MemoryRepository is an in-process Repository used for dry runs and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: map[string]*Document{}, now: time.Now}
}

func memoryKey(serviceType constants.ServiceType, name string) string {
	return string(serviceType) + "/" + name
}

// Upsert implements Repository.
func (m *MemoryRepository) Upsert(
	_ context.Context,
	serviceType constants.ServiceType,
	name string,
	fields map[string]any,
) (*Document, constants.ServiceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	key := memoryKey(serviceType, name)
	var prior constants.ServiceState

	doc, ok := m.docs[key]
	if ok {
		prior = doc.State
	} else {
		doc = &Document{ID: uuid.NewString(), Type: serviceType, Name: name, CreatedAt: now}
		m.docs[key] = doc
	}
	doc.Fields = maps.Clone(fields)
	doc.State = constants.ServiceStateFailed
	doc.Version++
	doc.UpdatedAt = now

	out := *doc
	return &out, prior, nil
}

// SetState implements Repository.
func (m *MemoryRepository) SetState(
	_ context.Context,
	serviceType constants.ServiceType,
	name string,
	state constants.ServiceState,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[memoryKey(serviceType, name)]
	if !ok {
		return appErrors.ErrResourceMissing("service not found: " + name)
	}
	doc.State = state
	doc.UpdatedAt = m.now().UTC()
	return nil
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, serviceType constants.ServiceType, name string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[memoryKey(serviceType, name)]
	if !ok {
		return nil, appErrors.ErrResourceMissing("service not found: " + name)
	}
	out := *doc
	return &out, nil
}

// List implements Repository. Documents are ordered by name.
func (m *MemoryRepository) List(_ context.Context, serviceType constants.ServiceType) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		if doc.Type == serviceType {
			d := *doc
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
