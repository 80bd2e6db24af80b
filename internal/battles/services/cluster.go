package services

import (
	"fmt"
	"sort"
	"time"

	killmodels "go-battles/internal/killmails/models"
)

// ClusterParams are the knobs of the gap-and-window walk.
type ClusterParams struct {
	// Window caps the time between a cluster's first and last kill.
	Window time.Duration
	// GapMax caps the time between two consecutive kills in a cluster.
	GapMax time.Duration
	// MinKills is the floor below which a closed cluster forms no battle.
	MinKills int
}

// Cluster is one candidate battle: consecutive kills in a single system.
type Cluster struct {
	SystemID int64
	Events   []killmodels.KillmailEvent
}

// Start returns the cluster's earliest kill time.
func (c *Cluster) Start() time.Time { return c.Events[0].OccurredAt }

// End returns the cluster's latest kill time.
func (c *Cluster) End() time.Time { return c.Events[len(c.Events)-1].OccurredAt }

// KillmailIDs lists the cluster's killmail IDs.
func (c *Cluster) KillmailIDs() []int64 {
	ids := make([]int64, len(c.Events))
	for i := range c.Events {
		ids[i] = c.Events[i].KillmailID
	}
	return ids
}

// TotalValue sums ISK destroyed across the cluster.
func (c *Cluster) TotalValue() float64 {
	var total float64
	for i := range c.Events {
		total += c.Events[i].TotalValue
	}
	return total
}

// BuildClusters walks events grouped by solar system in time order and cuts
// a new cluster whenever the gap to the previous kill exceeds GapMax or the
// span from the cluster's first kill exceeds Window. Both cuts are strict:
// a kill exactly GapMax after the previous one stays in the cluster.
//
// Events are re-sorted into (occurred_at, killmail_id) ascending order
// before the walk. MinKills is not applied here: undersized clusters are
// returned and the caller decides their fate.
func BuildClusters(events []killmodels.KillmailEvent, p ClusterParams) []Cluster {
	if len(events) == 0 {
		return nil
	}

	bySystem := make(map[int64][]killmodels.KillmailEvent)
	systems := make([]int64, 0)
	for _, ev := range events {
		if _, seen := bySystem[ev.SolarSystemID]; !seen {
			systems = append(systems, ev.SolarSystemID)
		}
		bySystem[ev.SolarSystemID] = append(bySystem[ev.SolarSystemID], ev)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i] < systems[j] })

	var clusters []Cluster
	for _, systemID := range systems {
		group := bySystem[systemID]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].OccurredAt.Equal(group[j].OccurredAt) {
				return group[i].OccurredAt.Before(group[j].OccurredAt)
			}
			return group[i].KillmailID < group[j].KillmailID
		})

		var current []killmodels.KillmailEvent
		flush := func() {
			if len(current) > 0 {
				clusters = append(clusters, Cluster{SystemID: systemID, Events: current})
				current = nil
			}
		}

		for _, ev := range group {
			if len(current) > 0 {
				gap := ev.OccurredAt.Sub(current[len(current)-1].OccurredAt)
				span := ev.OccurredAt.Sub(current[0].OccurredAt)
				if gap > p.GapMax || span > p.Window {
					flush()
				}
			}
			current = append(current, ev)
		}
		flush()
	}

	return clusters
}

// RelatedURL composes the external battle-report link for a system and a
// battle start time, minute-truncated per the site's convention.
func RelatedURL(systemID int64, start time.Time) string {
	return fmt.Sprintf("https://zkillboard.com/related/%d/%s/",
		systemID, start.UTC().Truncate(time.Minute).Format("200601021504"))
}
