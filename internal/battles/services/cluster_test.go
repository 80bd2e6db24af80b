package services

import (
	"testing"
	"time"

	killmodels "go-battles/internal/killmails/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clusterBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func eventAt(systemID int64, killmailID int64, minute int) killmodels.KillmailEvent {
	return killmodels.KillmailEvent{
		KillmailID:    killmailID,
		SolarSystemID: systemID,
		OccurredAt:    clusterBase.Add(time.Duration(minute) * time.Minute),
		TotalValue:    1_000_000,
	}
}

func defaultParams() ClusterParams {
	return ClusterParams{
		Window:   30 * time.Minute,
		GapMax:   15 * time.Minute,
		MinKills: 2,
	}
}

func TestBuildClustersGapCut(t *testing.T) {
	// Kills at minutes 0, 5, 25: the 5→25 gap exceeds 15m, so the third
	// kill opens a new cluster of its own.
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
		eventAt(30000142, 3, 25),
	}

	clusters := BuildClusters(events, defaultParams())
	require.Len(t, clusters, 2)

	assert.Equal(t, []int64{1, 2}, clusters[0].KillmailIDs())
	assert.Equal(t, []int64{3}, clusters[1].KillmailIDs())
	assert.Less(t, len(clusters[1].Events), defaultParams().MinKills)
}

func TestBuildClustersWindowCut(t *testing.T) {
	// Kills at 0, 10, 20, 35: every consecutive gap is within 15m, but 35
	// is more than 30m past the cluster's first kill, so the window cut
	// starts a new cluster that stays below min_kills.
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 10),
		eventAt(30000142, 3, 20),
		eventAt(30000142, 4, 35),
	}

	clusters := BuildClusters(events, defaultParams())
	require.Len(t, clusters, 2)

	assert.Equal(t, []int64{1, 2, 3}, clusters[0].KillmailIDs())
	assert.Equal(t, 20*time.Minute, clusters[0].End().Sub(clusters[0].Start()))
	assert.Equal(t, []int64{4}, clusters[1].KillmailIDs())
}

func TestBuildClustersBoundariesInclusive(t *testing.T) {
	// Cuts are strict: a kill exactly GapMax after the previous one, and
	// exactly Window after the first, stays in the cluster.
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 15),
		eventAt(30000142, 3, 30),
	}

	clusters := BuildClusters(events, defaultParams())
	require.Len(t, clusters, 1)
	assert.Equal(t, []int64{1, 2, 3}, clusters[0].KillmailIDs())
}

func TestBuildClustersSystemsIndependent(t *testing.T) {
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 1, 0),
		eventAt(31000005, 10, 1),
		eventAt(30000142, 2, 5),
		eventAt(31000005, 11, 6),
	}

	clusters := BuildClusters(events, defaultParams())
	require.Len(t, clusters, 2)

	bySystem := map[int64][]int64{}
	for _, c := range clusters {
		bySystem[c.SystemID] = c.KillmailIDs()
	}
	assert.Equal(t, []int64{1, 2}, bySystem[30000142])
	assert.Equal(t, []int64{10, 11}, bySystem[31000005])
}

func TestBuildClustersInvariants(t *testing.T) {
	// Irregular spacing across two systems; every produced cluster must
	// honor the span and gap bounds regardless of shape.
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 3),
		eventAt(30000142, 3, 14),
		eventAt(30000142, 4, 31),
		eventAt(30000142, 5, 40),
		eventAt(30002187, 6, 2),
		eventAt(30002187, 7, 60),
	}
	p := defaultParams()

	for _, c := range BuildClusters(events, p) {
		assert.False(t, c.Start().After(c.End()), "start must not follow end")
		assert.LessOrEqual(t, c.End().Sub(c.Start()), p.Window)
		for i := 1; i < len(c.Events); i++ {
			gap := c.Events[i].OccurredAt.Sub(c.Events[i-1].OccurredAt)
			assert.LessOrEqual(t, gap, p.GapMax)
		}
	}
}

func TestBuildClustersUnsortedInput(t *testing.T) {
	events := []killmodels.KillmailEvent{
		eventAt(30000142, 3, 25),
		eventAt(30000142, 1, 0),
		eventAt(30000142, 2, 5),
	}

	clusters := BuildClusters(events, defaultParams())
	require.Len(t, clusters, 2)
	assert.Equal(t, []int64{1, 2}, clusters[0].KillmailIDs())
}

func TestBuildClustersEmpty(t *testing.T) {
	assert.Nil(t, BuildClusters(nil, defaultParams()))
}

func TestClusterTotalValue(t *testing.T) {
	c := Cluster{Events: []killmodels.KillmailEvent{
		{TotalValue: 100}, {TotalValue: 0}, {TotalValue: 50.5},
	}}
	assert.Equal(t, 150.5, c.TotalValue())
}

func TestRelatedURLDeterministic(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 34, 56, 789, time.UTC)
	url := RelatedURL(30000142, start)
	assert.Equal(t, "https://zkillboard.com/related/30000142/202608011234/", url)

	// Seconds do not change the link.
	assert.Equal(t, url, RelatedURL(30000142, start.Add(3*time.Second)))
}
