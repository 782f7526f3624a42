package services

import (
	"context"
	"errors"
	"testing"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"github.com/cntrlcomply/backend/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGapService(e *testEnv) *GapService {
	return NewGapService(e.db, e.log, e.audit, e.toasts, e.api)
}

func TestGapService_ListGaps(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)

	gaps, err := s.ListGaps(context.Background(), "reg-1")
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, "gap-1", gaps[0].ID)
	assert.Equal(t, "gap-2", gaps[1].ID)

	all, err := s.ListGaps(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGapService_AcknowledgeGapIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)
	ctx := context.Background()
	before := e.auditCount(t, models.ActionGapAcknowledged)

	first, err := s.AcknowledgeGap(ctx, "gap-1")
	require.NoError(t, err)
	assert.True(t, first.Acknowledged)

	second, err := s.AcknowledgeGap(ctx, "gap-1")
	require.NoError(t, err)
	assert.True(t, second.Acknowledged)

	stored, err := s.GetGap(ctx, "gap-1")
	require.NoError(t, err)
	assert.True(t, stored.Acknowledged)
	assert.Equal(t, before+1, e.auditCount(t, models.ActionGapAcknowledged))
}

func TestGapService_AcknowledgeUnknownGap(t *testing.T) {
	e := newTestEnv(t)
	_, err := newGapService(e).AcknowledgeGap(context.Background(), "gap-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGapService_DismissGapRemovesExactlyOne(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)
	ctx := context.Background()

	before, err := s.ListGaps(ctx, "")
	require.NoError(t, err)

	require.NoError(t, s.DismissGap(ctx, "gap-2"))

	after, err := s.ListGaps(ctx, "")
	require.NoError(t, err)
	assert.Len(t, after, len(before)-1)
	for _, g := range after {
		assert.NotEqual(t, "gap-2", g.ID)
	}

	err = s.DismissGap(ctx, "gap-2")
	assert.ErrorIs(t, err, ErrNotFound)

	again, err := s.ListGaps(ctx, "")
	require.NoError(t, err)
	assert.Len(t, again, len(before)-1)
	assert.Equal(t, int64(1), e.auditCount(t, models.ActionGapDismissed))
}

func TestGapService_Analysts(t *testing.T) {
	e := newTestEnv(t)
	analysts, err := newGapService(e).Analysts(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(analysts))
	for _, a := range analysts {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Lisa Chen", "Marcus Tan", "Sarah Wong"}, names)
}

func TestGapService_AssignGapValidation(t *testing.T) {
	tests := []struct {
		name      string
		req       AssignRequest
		wantTitle string
	}{
		{"missing assignee", AssignRequest{DueDate: "2030-01-15"}, "Missing information"},
		{"missing due date", AssignRequest{AssigneeID: "sarah-wong"}, "Missing information"},
		{"bad due date", AssignRequest{AssigneeID: "sarah-wong", DueDate: "next week"}, "Missing information"},
		{"not an analyst", AssignRequest{AssigneeID: "tana-chen", DueDate: "2030-01-15"}, "Missing information"},
		{"unknown assignee", AssignRequest{AssigneeID: "nobody", DueDate: "2030-01-15"}, "Missing information"},
		{"bad priority", AssignRequest{AssigneeID: "sarah-wong", DueDate: "2030-01-15", Priority: "urgent"}, "Invalid priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			_, err := newGapService(e).AssignGap(context.Background(), "gap-1", tt.req)
			v, ok := IsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.wantTitle, v.Title)
			require.Len(t, e.toasts.All(), 1)
			assert.Equal(t, tt.wantTitle, e.toasts.Last().Title)
			assert.Equal(t, notify.VariantDestructive, e.toasts.Last().Variant)
			assert.Equal(t, int64(1), e.auditCount(t, models.ActionTaskAssigned), "only the seeded event")
		})
	}
}

func TestGapService_AssignGap(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)
	ctx := WithActor(context.Background(), Actor{UserID: "tana-chen", UserName: "Tana Chen", UserRole: "compliance_lead"})

	gap, err := s.AssignGap(ctx, "gap-1", AssignRequest{AssigneeID: "marcus-tan", DueDate: "2030-01-15", Notes: "CDD first"})
	require.NoError(t, err)
	assert.Equal(t, "Marcus Tan", gap.Assignment.AssigneeName)
	assert.Equal(t, models.PriorityMedium, gap.Assignment.Priority)
	require.NotNil(t, gap.Assignment.AssignedAt)

	// re-assigning replaces the previous assignment
	gap, err = s.AssignGap(ctx, "gap-1", AssignRequest{AssigneeID: "lisa-chen", DueDate: "2030-02-01", Priority: "high"})
	require.NoError(t, err)
	stored, err := s.GetGap(ctx, "gap-1")
	require.NoError(t, err)
	assert.Equal(t, "lisa-chen", stored.Assignment.AssigneeID)
	assert.Equal(t, "high", stored.Assignment.Priority)
	assert.Empty(t, stored.Assignment.Notes)

	toast := e.toasts.Last()
	assert.Equal(t, "Task assigned successfully", toast.Title)
	assert.Equal(t, "Gap analysis assigned to Lisa Chen", toast.Description)
	assert.Equal(t, notify.VariantDefault, toast.Variant)
	assert.Equal(t, int64(3), e.auditCount(t, models.ActionTaskAssigned))
}

func TestGapService_AnalyzeRegulation(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)
	ctx := context.Background()

	e.api.On("AnalyzeDocument", mock.Anything, "reg-4", mock.Anything).Return(&provider.AnalysisResult{
		Gaps: []models.ComplianceGap{
			{ID: "gap-1", Description: "Remittance screening", PolicySection: "Section 2.1 - Screening", Severity: models.SeverityHigh, Confidence: 0.9},
			{ID: "gap-new", Description: "Record keeping", PolicySection: "Section 6.3 - Records", Severity: models.SeverityMedium, Confidence: 0.8},
		},
	}, nil).Once()

	added, err := s.AnalyzeRegulation(ctx, "reg-4")
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotEqual(t, "gap-1", added[0].ID, "clashing ids are replaced")
	assert.Equal(t, "gap-new", added[1].ID)
	for _, g := range added {
		assert.Equal(t, "reg-4", g.RegulationID)
	}

	var reg models.RegulatoryItem
	require.NoError(t, e.db.First(&reg, "id = ?", "reg-4").Error)
	assert.Equal(t, 2, reg.GapsFound)
	assert.Equal(t, models.StatusGapsIdentified, reg.Status)
	assert.Equal(t, "Analysis complete", e.toasts.Last().Title)

	// a second run finds the same sections and adds nothing
	e.api.On("AnalyzeDocument", mock.Anything, "reg-4", mock.Anything).Return(&provider.AnalysisResult{
		Gaps: []models.ComplianceGap{{ID: "gap-new", PolicySection: "Section 6.3 - Records"}},
	}, nil).Once()
	added, err = s.AnalyzeRegulation(ctx, "reg-4")
	require.NoError(t, err)
	assert.Empty(t, added)
	e.api.AssertExpectations(t)
}

func TestGapService_AnalyzeRegulationProviderFailure(t *testing.T) {
	e := newTestEnv(t)
	s := newGapService(e)

	e.api.On("AnalyzeDocument", mock.Anything, "reg-1", mock.Anything).
		Return(nil, &provider.APIError{Endpoint: provider.EndpointAnalyzeDocument})

	_, err := s.AnalyzeRegulation(context.Background(), "reg-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrProviderFailure))

	toast := e.toasts.Last()
	assert.Equal(t, "Analysis failed", toast.Title)
	assert.Equal(t, notify.VariantDestructive, toast.Variant)

	gaps, err := s.ListGaps(context.Background(), "reg-1")
	require.NoError(t, err)
	assert.Len(t, gaps, 2)
}
