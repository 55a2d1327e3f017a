// Package service runs the save pipeline shared by every deployable service kind:
// validate the draft, persist it as FAILED with a bumped version, deploy it,
// then settle the document state.
package service

import (
	"context"
	"log/slog"

	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/operation"
)

// SaveSucceeded is reported to the sink when a save completes.
const SaveSucceeded = "Service saved"

// Kind is what a service type plugs into the pipeline.
type Kind[D any] interface {
	// Type is the document type written for drafts of this kind.
	Type() constants.ServiceType
	// Name is the natural key of the draft within its type.
	Name(draft D) string
	// Validate checks the draft before anything is written or called.
	Validate(ctx context.Context, draft D) error
	// Fields are the document fields persisted for the draft.
	Fields(draft D) map[string]any
	// Deploy installs the saved document in its target environment.
	Deploy(ctx context.Context, doc *Document, draft D) error
}

// Pipeline saves drafts of one service kind.
type Pipeline[D any] struct {
	kind   Kind[D]
	repo   Repository
	logger *slog.Logger
}

// NewPipeline creates a pipeline for kind storing documents in repo.
func NewPipeline[D any](kind Kind[D], repo Repository, log *slog.Logger) *Pipeline[D] {
	return &Pipeline[D]{kind: kind, repo: repo, logger: log}
}

// Save runs the pipeline for draft, reporting to sink.
// A deploy failure leaves the document FAILED; the returned document reflects what was stored.
func (p *Pipeline[D]) Save(ctx context.Context, draft D, sink operation.Sink) (*Document, error) {
	var doc *Document
	err := operation.Run(ctx, sink, SaveSucceeded, func(ctx context.Context, progress *operation.Progress) error {
		var err error
		doc, err = p.save(ctx, draft, progress)
		return err
	})
	return doc, err
}

func (p *Pipeline[D]) save(ctx context.Context, draft D, progress *operation.Progress) (*Document, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, p.logger)
	serviceType := p.kind.Type()
	name := p.kind.Name(draft)

	progress.Set(0, "validating")
	if err := p.kind.Validate(ctx, draft); err != nil {
		return nil, err
	}

	progress.Set(10, "saving the document")
	doc, prior, err := p.repo.Upsert(ctx, serviceType, name, p.kind.Fields(draft))
	if err != nil {
		return nil, err
	}
	reqLogger.Debug("service document saved", "context", map[string]any{
		"type":    serviceType,
		"name":    name,
		"version": doc.Version,
		"prior":   prior,
	})

	progress.Set(30, "deploying")
	if err = p.kind.Deploy(ctx, doc, draft); err != nil {
		reqLogger.Error("service deploy failed", "type", serviceType, "name", name, "error", err)
		return doc, err
	}

	progress.Set(90, "updating the service state")
	state := FinalState(prior)
	if err = p.repo.SetState(ctx, serviceType, name, state); err != nil {
		return doc, err
	}
	doc.State = state

	progress.Set(100, "")
	reqLogger.Info("service deployed", "type", serviceType, "name", name, "state", state, "version", doc.Version)
	return doc, nil
}
