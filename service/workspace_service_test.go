package services

import (
	"context"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/cntrlcomply/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceService_Get(t *testing.T) {
	e := newTestEnv(t)
	s := NewWorkspaceService(e.db, e.log)
	ctx := context.Background()

	session, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.TabDashboard, session.ActiveTab)
	assert.Empty(t, session.SelectedRegulationID)

	_, err = s.Get(ctx, "")
	_, ok := IsValidation(err)
	assert.True(t, ok)
}

func TestWorkspaceService_SetActiveTab(t *testing.T) {
	e := newTestEnv(t)
	s := NewWorkspaceService(e.db, e.log)
	ctx := context.Background()

	session, err := s.SetActiveTab(ctx, "sess-1", models.TabAudit)
	require.NoError(t, err)
	assert.Equal(t, models.TabAudit, session.ActiveTab)

	_, err = s.SetActiveTab(ctx, "sess-1", "settings")
	v, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid tab", v.Title)

	stored, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.TabAudit, stored.ActiveTab)
}

func TestWorkspaceService_SelectRegulation(t *testing.T) {
	tests := []struct {
		action  string
		wantTab string
	}{
		{"view_gaps", models.TabGaps},
		{"amend_policies", models.TabAmendments},
		{"generate_report", models.TabReports},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			e := newTestEnv(t)
			s := NewWorkspaceService(e.db, e.log)

			session, err := s.SelectRegulation(context.Background(), "sess-1", "reg-2", tt.action)
			require.NoError(t, err)
			assert.Equal(t, "reg-2", session.SelectedRegulationID)
			assert.Equal(t, tt.wantTab, session.ActiveTab)
		})
	}
}

func TestWorkspaceService_SelectRegulationRejects(t *testing.T) {
	e := newTestEnv(t)
	s := NewWorkspaceService(e.db, e.log)
	ctx := context.Background()

	_, err := s.SelectRegulation(ctx, "sess-1", "reg-404", "view_gaps")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SelectRegulation(ctx, "sess-1", "reg-1", "delete")
	_, ok := IsValidation(err)
	assert.True(t, ok)

	// neither failure touched the session
	session, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.TabDashboard, session.ActiveTab)
	assert.Empty(t, session.SelectedRegulationID)
}

func TestRegulatoryService_Stats(t *testing.T) {
	e := newTestEnv(t)
	s := NewRegulatoryService(e.db, e.log)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{
		TotalDocuments:   4,
		PendingGaps:      3,
		CompletedReviews: 1,
		UrgentItems:      1,
		GapsFound:        8,
		CompletionRate:   25,
	}, *st)

	// stats follow the records
	_, err = newGapService(e).AcknowledgeGap(ctx, "gap-3")
	require.NoError(t, err)
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.PendingGaps)
}

func TestRegulatoryService_List(t *testing.T) {
	fixed := time.Date(2024, 6, 18, 0, 0, 0, 0, time.Local)
	patches := gomonkey.ApplyGlobalVar(&now, func() time.Time { return fixed })
	defer patches.Reset()

	e := newTestEnv(t)
	s := NewRegulatoryService(e.db, e.log)
	ctx := context.Background()

	items, err := s.List(ctx, RegulatoryFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"reg-3", "reg-2", "reg-1", "reg-4"}, ids, "ordered by closing date")
	assert.Equal(t, 7, items[1].DaysUntilClosing)

	urgent, err := s.List(ctx, RegulatoryFilter{Priority: models.PriorityUrgent})
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	assert.Equal(t, "reg-2", urgent[0].ID)

	_, err = s.List(ctx, RegulatoryFilter{Status: "Archived"})
	_, ok := IsValidation(err)
	assert.True(t, ok)

	_, err = s.Get(ctx, "reg-404")
	assert.ErrorIs(t, err, ErrNotFound)

	dash, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, dash.Items, 4)
	assert.Equal(t, int64(4), dash.Stats.TotalDocuments)
}
