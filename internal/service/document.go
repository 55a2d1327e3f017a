package service

import (
	"context"
	"time"

	"github.com/ppp/pppctl/internal/constants"
)

// Document is the persisted record of one configured service.
// Documents are keyed by (Type, Name).
type Document struct {
	ID        string                 `json:"id"`
	Type      constants.ServiceType  `json:"type"`
	Name      string                 `json:"name"`
	State     constants.ServiceState `json:"state"`
	Version   int                    `json:"version"`
	Fields    map[string]any         `json:"fields"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Repository persists service documents.
type Repository interface {
	// Upsert stores fields under (serviceType, name), marks the document FAILED and bumps
	// its version. Identity and creation time are only written on insert.
	// prior is the state the document had before the write, empty for new documents.
	Upsert(
		ctx context.Context,
		serviceType constants.ServiceType,
		name string,
		fields map[string]any,
	) (doc *Document, prior constants.ServiceState, err error)
	// SetState updates the state of an existing document.
	SetState(ctx context.Context, serviceType constants.ServiceType, name string, state constants.ServiceState) error
	// Get returns a document or a missing resource error.
	Get(ctx context.Context, serviceType constants.ServiceType, name string) (*Document, error)
	// List returns every document of a service type.
	List(ctx context.Context, serviceType constants.ServiceType) ([]*Document, error)
}

// FinalState is the state a document takes after a successful deploy.
// Active services stay active; everything else, including previously failed ones, is stopped.
func FinalState(prior constants.ServiceState) constants.ServiceState {
	if prior == constants.ServiceStateActive {
		return constants.ServiceStateActive
	}
	return constants.ServiceStateStopped
}
