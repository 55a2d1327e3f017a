package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/testutil"
)

type testDraft struct {
	Name  string
	Value int
}

type fakeKind struct {
	validateFunc func(testDraft) error
	deployFunc   func(*Document, testDraft) error
	deployed     []*Document
}

func (k *fakeKind) Type() constants.ServiceType { return constants.ServiceNyseNsdqHalts }

func (k *fakeKind) Name(d testDraft) string { return d.Name }

func (k *fakeKind) Validate(_ context.Context, d testDraft) error {
	if k.validateFunc != nil {
		return k.validateFunc(d)
	}
	return nil
}

func (k *fakeKind) Fields(d testDraft) map[string]any {
	return map[string]any{"name": d.Name, "value": d.Value}
}

func (k *fakeKind) Deploy(_ context.Context, doc *Document, d testDraft) error {
	copied := *doc
	k.deployed = append(k.deployed, &copied)
	if k.deployFunc != nil {
		return k.deployFunc(doc, d)
	}
	return nil
}

func TestFinalState(t *testing.T) {
	tests := []struct {
		prior constants.ServiceState
		want  constants.ServiceState
	}{
		{"", constants.ServiceStateStopped},
		{constants.ServiceStateActive, constants.ServiceStateActive},
		{constants.ServiceStateStopped, constants.ServiceStateStopped},
		{constants.ServiceStateFailed, constants.ServiceStateStopped},
	}
	for _, tt := range tests {
		t.Run(string(tt.prior), func(t *testing.T) {
			assert.Equal(t, tt.want, FinalState(tt.prior))
		})
	}
}

func TestPipeline_SaveNew(t *testing.T) {
	ctx := testutil.TestContext()
	repo := NewMemoryRepository()
	kind := &fakeKind{}
	sink := &testutil.RecordingSink{}

	doc, err := NewPipeline[testDraft](kind, repo, testutil.SilentLogger()).
		Save(ctx, testDraft{Name: "halts", Value: 3}, sink)
	require.NoError(t, err)

	assert.Equal(t, constants.ServiceStateStopped, doc.State)
	assert.Equal(t, 1, doc.Version)
	assert.NotEmpty(t, doc.ID)

	require.Len(t, kind.deployed, 1)
	assert.Equal(t, constants.ServiceStateFailed, kind.deployed[0].State, "deploy runs against the FAILED document")

	stored, err := repo.Get(ctx, constants.ServiceNyseNsdqHalts, "halts")
	require.NoError(t, err)
	assert.Equal(t, constants.ServiceStateStopped, stored.State)
	assert.Equal(t, 3, stored.Fields["value"])

	assert.Equal(t, []string{"begin"}, sink.Calls[:1])
	assert.Equal(t, []string{"succeed", "end"}, sink.Calls[len(sink.Calls)-2:])
	assert.Equal(t, SaveSucceeded, sink.Succeeded)
	assert.Equal(t, 100, sink.Percents()[len(sink.Percents())-1])
}

func TestPipeline_StateTransitions(t *testing.T) {
	tests := []struct {
		name      string
		prior     constants.ServiceState
		deployErr error
		want      constants.ServiceState
	}{
		{name: "active stays active", prior: constants.ServiceStateActive, want: constants.ServiceStateActive},
		{name: "stopped stays stopped", prior: constants.ServiceStateStopped, want: constants.ServiceStateStopped},
		{name: "failed becomes stopped", prior: constants.ServiceStateFailed, want: constants.ServiceStateStopped},
		{
			name:      "deploy failure leaves failed",
			prior:     constants.ServiceStateActive,
			deployErr: errors.New("syntax error at or near"),
			want:      constants.ServiceStateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.TestContext()
			repo := NewMemoryRepository()
			_, _, err := repo.Upsert(ctx, constants.ServiceNyseNsdqHalts, "h", map[string]any{})
			require.NoError(t, err)
			require.NoError(t, repo.SetState(ctx, constants.ServiceNyseNsdqHalts, "h", tt.prior))

			kind := &fakeKind{deployFunc: func(*Document, testDraft) error { return tt.deployErr }}
			sink := &testutil.RecordingSink{}
			_, err = NewPipeline[testDraft](kind, repo, testutil.SilentLogger()).Save(ctx, testDraft{Name: "h"}, sink)
			if tt.deployErr != nil {
				assert.ErrorIs(t, err, tt.deployErr)
				assert.Equal(t, tt.deployErr, sink.Failed)
			} else {
				require.NoError(t, err)
			}

			stored, err := repo.Get(ctx, constants.ServiceNyseNsdqHalts, "h")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.State)
			assert.Equal(t, 2, stored.Version)
		})
	}
}

func TestPipeline_VersionBumpsOnEverySave(t *testing.T) {
	ctx := testutil.TestContext()
	repo := NewMemoryRepository()
	p := NewPipeline[testDraft](&fakeKind{}, repo, testutil.SilentLogger())

	var createdID string
	for i := 1; i <= 3; i++ {
		doc, err := p.Save(ctx, testDraft{Name: "h", Value: i}, nil)
		require.NoError(t, err)
		assert.Equal(t, i, doc.Version)
		if createdID == "" {
			createdID = doc.ID
		}
		assert.Equal(t, createdID, doc.ID)
	}
}

func TestPipeline_ValidationFailureWritesNothing(t *testing.T) {
	ctx := testutil.TestContext()
	repo := NewMemoryRepository()
	kind := &fakeKind{validateFunc: func(testDraft) error {
		return appErrors.NewValidationError("interval", "enter a value between 1 and 1000")
	}}

	_, err := NewPipeline[testDraft](kind, repo, testutil.SilentLogger()).Save(ctx, testDraft{Name: "h"}, nil)
	testutil.AssertValidationField(t, err, "interval")

	docs, err := repo.List(ctx, constants.ServiceNyseNsdqHalts)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, kind.deployed)
}

func TestMemoryRepository(t *testing.T) {
	ctx := testutil.TestContext()
	repo := NewMemoryRepository()

	_, err := repo.Get(ctx, constants.ServiceNyseNsdqHalts, "x")
	testutil.AssertErrorType(t, err, appErrors.ErrMissingResource)
	assert.Error(t, repo.SetState(ctx, constants.ServiceNyseNsdqHalts, "x", constants.ServiceStateActive))

	_, prior, err := repo.Upsert(ctx, constants.ServiceNyseNsdqHalts, "b", nil)
	require.NoError(t, err)
	assert.Empty(t, prior)
	_, _, err = repo.Upsert(ctx, constants.ServiceNyseNsdqHalts, "a", nil)
	require.NoError(t, err)
	_, prior, err = repo.Upsert(ctx, constants.ServiceNyseNsdqHalts, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, constants.ServiceStateFailed, prior)

	docs, err := repo.List(ctx, constants.ServiceNyseNsdqHalts)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Name)
	assert.Equal(t, 2, docs[1].Version)
}
