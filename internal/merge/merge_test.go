package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(localID, serverID string, synced bool, at time.Time, payload string) models.Record {
	return models.Record{
		SyncMeta: models.SyncMeta{LocalID: localID, ServerID: serverID, CreatedAt: at, UpdatedAt: at, Synced: synced},
		Payload:  json.RawMessage(payload),
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		local  models.Record
		remote models.Record
		want   Decision
	}{
		{
			name:   "unsynced local wins even when older",
			local:  rec("l1", "s1", false, t0, `{"v":1}`),
			remote: rec("", "s1", true, t0.Add(time.Hour), `{"v":2}`),
			want:   Decision{KeepLocal, ReasonUnsynced},
		},
		{
			name:   "newer remote replaces synced local",
			local:  rec("l1", "s1", true, t0, `{"v":1}`),
			remote: rec("", "s1", true, t0.Add(time.Second), `{"v":2}`),
			want:   Decision{AdoptRemote, ReasonRemoteNewer},
		},
		{
			name:   "newer local is kept",
			local:  rec("l1", "s1", true, t0.Add(time.Second), `{"v":1}`),
			remote: rec("", "s1", true, t0, `{"v":2}`),
			want:   Decision{KeepLocal, ReasonLocalNewer},
		},
		{
			name:   "tie keeps local",
			local:  rec("l1", "s1", true, t0, `{"v":1}`),
			remote: rec("", "s1", true, t0, `{"v":2}`),
			want:   Decision{KeepLocal, ReasonTie},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.local, tt.remote))
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	local := rec("l1", "s1", true, t0, `{"v":1}`)
	remote := rec("", "s1", true, t0.Add(time.Minute), `{"v":2}`)
	first := Apply(local, remote, Resolve(local, remote))
	for i := 0; i < 10; i++ {
		got := Apply(local, remote, Resolve(local, remote))
		assert.Equal(t, first, got)
	}
}

func TestApplyAdoptKeepsLocalIdentity(t *testing.T) {
	local := rec("l1", "s1", true, t0, `{"v":1}`)
	remote := rec("", "s1", false, t0.Add(time.Minute), `{"v":2}`)
	remote.CreatedAt = t0.Add(time.Second)

	out := Apply(local, remote, Decision{AdoptRemote, ReasonRemoteNewer})
	assert.Equal(t, "l1", out.LocalID)
	assert.Equal(t, "s1", out.ServerID)
	assert.True(t, out.CreatedAt.Equal(t0))
	assert.True(t, out.Synced)
	assert.JSONEq(t, `{"v":2}`, string(out.Payload))
}

// Local unsynced budget at T2 against remote at T1 < T2: local wins.
func TestScenarioDUnsyncedLocalBudgetWins(t *testing.T) {
	t1, t2 := t0, t0.Add(time.Hour)
	local := rec("b1", "sb1", false, t2, `{"total":"500"}`)
	remote := rec("", "sb1", true, t1, `{"total":"300"}`)

	res := Collection([]models.Record{local}, []models.Record{remote}, nil)
	require.Len(t, res.Records, 1)
	assert.JSONEq(t, `{"total":"500"}`, string(res.Records[0].Payload))
	assert.False(t, res.Records[0].Synced)
	assert.Empty(t, res.Replaced)
	assert.Equal(t, 1, res.Kept)
}

func TestCollectionMerge(t *testing.T) {
	local := []models.Record{
		rec("l1", "s1", true, t0, `{"n":"kept-older-remote"}`),
		rec("l2", "s2", true, t0, `{"n":"replaced"}`),
		rec("l3", "", false, t0, `{"n":"local-only"}`),
		rec("l4", "s4", true, t0, `{"n":"deleted-remotely"}`),
		rec("l5", "s5", false, t0, `{"n":"pending-update"}`),
	}
	remote := []models.Record{
		rec("", "s1", true, t0.Add(-time.Minute), `{"n":"old"}`),
		rec("", "s2", true, t0.Add(time.Minute), `{"n":"new"}`),
		rec("", "s9", true, t0.Add(2*time.Minute), `{"n":"adopted-late"}`),
		rec("other-device", "s8", true, t0.Add(time.Minute), `{"n":"adopted-early"}`),
	}

	res := Collection(local, remote, nil)

	var names []string
	for _, r := range res.Records {
		var p struct{ N string }
		require.NoError(t, json.Unmarshal(r.Payload, &p))
		names = append(names, p.N)
	}
	assert.Equal(t, []string{
		"kept-older-remote", "new", "local-only", "pending-update", "adopted-early", "adopted-late",
	}, names)

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "l4", res.Dropped[0].LocalID)
	require.Len(t, res.Replaced, 1)
	assert.Equal(t, "l2", res.Replaced[0].Remote.LocalID)
	require.Len(t, res.Adopted, 2)
	assert.Equal(t, "other-device", res.Adopted[0].LocalID)
	assert.Empty(t, res.Adopted[1].LocalID)
	for _, a := range res.Adopted {
		assert.True(t, a.Synced)
	}
}

func TestCollectionLinksEchoedLocalID(t *testing.T) {
	local := []models.Record{rec("l1", "", false, t0, `{"n":1}`)}
	remote := []models.Record{rec("l1", "s1", true, t0, `{"n":1}`)}

	res := Collection(local, remote, nil)
	require.Len(t, res.Records, 1, "lost acknowledgement must not duplicate")
	require.Len(t, res.Linked, 1)
	assert.Equal(t, "s1", res.Linked[0].ServerID)
	assert.False(t, res.Linked[0].Synced)
	assert.Empty(t, res.Adopted)
}

func TestCollectionDoesNotResurrectPendingDeletes(t *testing.T) {
	remote := []models.Record{
		rec("", "s1", true, t0, `{}`),
		rec("l2", "s2", true, t0, `{}`),
		rec("", "s3", true, t0, `{}`),
	}
	res := Collection(nil, remote, map[string]bool{"s1": true, "l2": true})
	require.Len(t, res.Adopted, 1)
	assert.Equal(t, "s3", res.Adopted[0].ServerID)
}

func TestCollectionIndependentOfRemoteOrder(t *testing.T) {
	local := []models.Record{rec("l1", "s1", true, t0, `{}`)}
	a := rec("", "s2", true, t0.Add(time.Minute), `{"a":1}`)
	b := rec("", "s3", true, t0.Add(time.Minute), `{"b":1}`)

	r1 := Collection(local, []models.Record{a, b}, nil)
	r2 := Collection(local, []models.Record{b, a}, nil)
	assert.Equal(t, r1.Records, r2.Records)
}

func TestCollectionAsOfKeepsLateConfirmations(t *testing.T) {
	local := []models.Record{
		rec("l1", "s1", true, t0, `{"n":"deleted-remotely"}`),
		rec("l2", "s2", true, t0, `{"n":"confirmed-during-listing"}`),
	}
	confirmed := map[string]string{"l1": "s1"}

	res := CollectionAsOf(local, nil, nil, confirmed)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "l1", res.Dropped[0].LocalID)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "l2", res.Records[0].LocalID)
	assert.True(t, res.Records[0].Synced)
	assert.Equal(t, 1, res.Kept)
}
