package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAmendmentService(e *testEnv) *AmendmentService {
	return NewAmendmentService(e.db, e.log, e.audit, e.toasts, e.api, AmendmentConfig{})
}

func TestAmendmentService_TerminalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		first      func(*AmendmentService, context.Context) (*models.PolicyAmendment, error)
		wantStatus string
		wantAction string
		wantToast  string
	}{
		{
			name:       "approve",
			first:      func(s *AmendmentService, ctx context.Context) (*models.PolicyAmendment, error) { return s.Approve(ctx, "amend-1") },
			wantStatus: models.AmendmentApproved,
			wantAction: models.ActionAmendmentApproved,
			wantToast:  "Amendment approved",
		},
		{
			name:       "reject",
			first:      func(s *AmendmentService, ctx context.Context) (*models.PolicyAmendment, error) { return s.Reject(ctx, "amend-1") },
			wantStatus: models.AmendmentRejected,
			wantAction: models.ActionAmendmentRejected,
			wantToast:  "Amendment rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			s := newAmendmentService(e)
			ctx := context.Background()
			before := e.auditCount(t, tt.wantAction)

			a, err := tt.first(s, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, a.Status)
			assert.Equal(t, DefaultActor.UserID, a.DecidedBy)
			require.NotNil(t, a.DecidedAt)
			assert.Equal(t, tt.wantToast, e.toasts.Last().Title)
			assert.Equal(t, before+1, e.auditCount(t, tt.wantAction))

			// every further action is refused
			_, err = s.Approve(ctx, "amend-1")
			assert.ErrorIs(t, err, ErrInvalidTransition)
			_, err = s.Reject(ctx, "amend-1")
			assert.ErrorIs(t, err, ErrInvalidTransition)
			_, err = s.SaveEdit(ctx, "amend-1", "New wording")
			assert.ErrorIs(t, err, ErrInvalidTransition)

			stored, err := s.Get(ctx, "amend-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Len(t, e.toasts.All(), 1)
		})
	}
}

func TestAmendmentService_SaveEdit(t *testing.T) {
	e := newTestEnv(t)
	s := newAmendmentService(e)
	ctx := context.Background()

	_, err := s.SaveEdit(ctx, "amend-2", "   ")
	v, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Missing information", v.Title)
	assert.Equal(t, "Proposed text cannot be empty", e.toasts.Last().Description)

	a, err := s.SaveEdit(ctx, "amend-2", "Reports must be filed within 24 hours of detection.")
	require.NoError(t, err)
	assert.True(t, a.Edited)
	assert.Equal(t, models.AmendmentPending, a.Status)

	// edits may repeat while pending
	a, err = s.SaveEdit(ctx, "amend-2", "Reports must be filed within 12 hours of detection.")
	require.NoError(t, err)
	assert.Equal(t, "Reports must be filed within 12 hours of detection.", a.ProposedText)
	assert.Equal(t, int64(2), e.auditCount(t, models.ActionAmendmentEdited))
	assert.Equal(t, "Amendment updated", e.toasts.Last().Title)

	a, err = s.Approve(ctx, "amend-2")
	require.NoError(t, err)
	assert.True(t, a.Edited)
	assert.Equal(t, models.AmendmentApproved, a.Status)
}

func TestAmendmentService_UnknownAmendment(t *testing.T) {
	e := newTestEnv(t)
	_, err := newAmendmentService(e).Approve(context.Background(), "amend-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAmendmentService_DelayIsCancellable(t *testing.T) {
	e := newTestEnv(t)
	s := NewAmendmentService(e.db, e.log, e.audit, e.toasts, e.api, AmendmentConfig{MinDelay: time.Minute, MaxDelay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Approve(ctx, "amend-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stored, err := s.Get(context.Background(), "amend-1")
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentPending, stored.Status)
	assert.Empty(t, e.toasts.All())
}

func TestAmendmentService_DecidedAtUsesClock(t *testing.T) {
	fixed := time.Date(2024, 6, 18, 9, 0, 0, 0, time.UTC)
	patches := gomonkey.ApplyGlobalVar(&now, func() time.Time { return fixed })
	defer patches.Reset()

	e := newTestEnv(t)
	a, err := newAmendmentService(e).Approve(context.Background(), "amend-1")
	require.NoError(t, err)
	require.NotNil(t, a.DecidedAt)
	assert.True(t, fixed.Equal(*a.DecidedAt))
}

func TestScaleAmendmentDelay(t *testing.T) {
	cfg := ScaleAmendmentDelay(DefaultAmendmentConfig(), 0.5)
	assert.Equal(t, 500*time.Millisecond, cfg.MinDelay)
	assert.Equal(t, time.Second, cfg.MaxDelay)
	assert.Equal(t, AmendmentConfig{}, ScaleAmendmentDelay(DefaultAmendmentConfig(), 0))
}

func TestAmendmentService_Diff(t *testing.T) {
	e := newTestEnv(t)
	d, err := newAmendmentService(e).Diff(context.Background(), "amend-1")
	require.NoError(t, err)

	var inserted, deleted bool
	for _, seg := range d.Segments {
		switch seg.Op {
		case "insert":
			inserted = true
		case "delete":
			deleted = true
		}
	}
	assert.True(t, inserted)
	assert.True(t, deleted)
	assert.Contains(t, d.Patch, "@@")
}

func TestAmendmentService_GenerateForGap(t *testing.T) {
	e := newTestEnv(t)
	s := newAmendmentService(e)
	ctx := context.Background()

	e.api.On("GenerateAmendments", mock.Anything, "gap-3").Return(&provider.AmendmentResult{
		Amendments: []models.PolicyAmendment{{
			ProposedText: "Transaction records are retained for five years.",
			ChangeType:   "rewrite",
			Status:       models.AmendmentApproved,
		}},
	}, nil).Once()

	created, err := s.GenerateForGap(ctx, "gap-3")
	require.NoError(t, err)
	require.Len(t, created, 1)
	a := created[0]
	assert.Equal(t, "reg-2", a.RegulationID)
	assert.Equal(t, "Section 8.2 - Data Retention", a.PolicySection)
	assert.Equal(t, "Transaction data is retained for three years...", a.OriginalText)
	assert.Equal(t, models.ChangeModification, a.ChangeType)
	assert.Equal(t, models.AmendmentPending, a.Status, "drafts always start pending")

	list, err := s.ListAmendments(ctx, "reg-2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "Amendments generated", e.toasts.Last().Title)
}

func TestAmendmentService_GenerateForGapFailure(t *testing.T) {
	e := newTestEnv(t)
	e.api.On("GenerateAmendments", mock.Anything, "gap-1").
		Return(nil, &provider.APIError{Endpoint: provider.EndpointGenerateAmendments})

	_, err := newAmendmentService(e).GenerateForGap(context.Background(), "gap-1")
	assert.True(t, errors.Is(err, provider.ErrProviderFailure))
	assert.Equal(t, "Amendment generation failed", e.toasts.Last().Title)
}
