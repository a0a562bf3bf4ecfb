package calls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyProviderStatus(t *testing.T) {
	cases := []struct {
		provider      string
		start         CallStatus
		want          CallStatus
		wantCompleted bool
	}{
		{"done", CallStatusInitiated, CallStatusCompleted, true},
		{"Completed", CallStatusInitiated, CallStatusCompleted, true},
		{"failed", CallStatusInitiated, CallStatusFailed, false},
		{"processing", CallStatusInitiated, CallStatusInitiated, false},
		{"", CallStatusQueued, CallStatusQueued, false},
		{"done", CallStatusCompleted, CallStatusCompleted, true},
		{"failed", CallStatusCompleted, CallStatusCompleted, false},
		{"done", CallStatusFailed, CallStatusFailed, false},
		{"completed", CallStatusFailed, CallStatusFailed, false},
	}
	for _, tc := range cases {
		c := Call{Status: tc.start}
		got := c.ApplyProviderStatus(tc.provider)
		assert.Equal(t, tc.want, c.Status, "provider status %q", tc.provider)
		assert.Equal(t, tc.wantCompleted, got, "provider status %q", tc.provider)
	}
}

func TestIsTerminalAndCorrelatable(t *testing.T) {
	assert.True(t, CallStatusCompleted.IsTerminal())
	assert.True(t, CallStatusFailed.IsTerminal())
	assert.False(t, CallStatusInitiated.IsTerminal())
	assert.False(t, CallStatusInProgress.IsTerminal())

	assert.False(t, Call{}.IsCorrelatable())
	assert.True(t, Call{CallSID: "CA1"}.IsCorrelatable())
	assert.True(t, Call{ConversationID: "conv1"}.IsCorrelatable())
}

func TestMarkInitiatedKeepsExistingConversation(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Call{Status: CallStatusQueued, ConversationID: "conv-old"}
	c.MarkInitiated("CA1", "conv-new", now)

	assert.Equal(t, CallStatusInitiated, c.Status)
	assert.Equal(t, "CA1", c.CallSID)
	assert.Equal(t, "conv-old", c.ConversationID)
	require.NotNil(t, c.StartedAt)
	assert.Equal(t, now, *c.StartedAt)
}

func TestMarkFailedKeepsReason(t *testing.T) {
	c := Call{Status: CallStatusQueued}
	c.MarkFailed("provider said no", time.Now())
	assert.Equal(t, CallStatusFailed, c.Status)
	assert.Equal(t, "provider said no", c.Notes)
}

func TestOutcomesAreCanonical(t *testing.T) {
	assert.Len(t, Outcomes, 13)
	for _, o := range Outcomes {
		assert.True(t, o.IsCanonical(), string(o))
	}
	assert.False(t, Outcome("maybe").IsCanonical())
}

func TestMemoryRepo_FindAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := Call{ID: "c1", TenantID: "t1", Direction: DirectionOutbound, Status: CallStatusQueued, CreatedAt: t0}
	require.NoError(t, repo.Create(ctx, c))
	assert.ErrorIs(t, repo.Create(ctx, c), ErrInvalidArgument)

	_, err := repo.FindByCallSID(ctx, "CA1")
	assert.ErrorIs(t, err, ErrNotFound)

	c.CallSID = "CA1"
	c.ConversationID = "conv1"
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.FindByCallSID(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	got, err = repo.FindByConversationID(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	_, err = repo.Get(ctx, "t2", "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	c.TenantID = "t2"
	assert.ErrorIs(t, repo.Update(ctx, c), ErrNotFound)
}

func TestMemoryRepo_EmptyProviderIDsNeverMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Create(ctx, Call{ID: "c1", TenantID: "t1", Direction: DirectionOutbound}))

	_, err := repo.FindByCallSID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByConversationID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, c := range []Call{
		{ID: "a", TenantID: "t1", Direction: DirectionOutbound, Status: CallStatusCompleted, CampaignID: "camp"},
		{ID: "b", TenantID: "t1", Direction: DirectionOutbound, Status: CallStatusFailed},
		{ID: "c", TenantID: "t1", Direction: DirectionInbound, Status: CallStatusCompleted, CampaignID: "camp"},
		{ID: "d", TenantID: "t2", Direction: DirectionOutbound, Status: CallStatusCompleted},
	} {
		c.CreatedAt = t0.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, c))
	}

	all, err := repo.List(ctx, "t1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	got, err := repo.List(ctx, "t1", ListFilter{Status: CallStatusCompleted, CampaignID: "camp"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.List(ctx, "t1", ListFilter{From: t0.Add(time.Hour), To: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got, err = repo.List(ctx, "t1", ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestValidateForWrite(t *testing.T) {
	assert.ErrorIs(t, validateForWrite(Call{ID: "x", Direction: DirectionInbound}), ErrInvalidArgument)
	assert.ErrorIs(t, validateForWrite(Call{ID: "x", TenantID: "t"}), ErrInvalidArgument)
	assert.NoError(t, validateForWrite(Call{ID: "x", TenantID: "t", Direction: DirectionInbound}))
}
