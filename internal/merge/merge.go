// Package merge decides which version of an entity survives when a local
// and a remote version coexist. Decisions are pure functions of their
// inputs: the same pair always yields the same winner.
package merge

import (
	"sort"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// Outcome is the surviving side of a per-entity merge.
type Outcome int

const (
	KeepLocal Outcome = iota
	AdoptRemote
)

func (o Outcome) String() string {
	if o == AdoptRemote {
		return "remote"
	}
	return "local"
}

// Reasons reported with a decision.
const (
	ReasonUnsynced    = "local_unsynced"
	ReasonRemoteNewer = "remote_newer"
	ReasonLocalNewer  = "local_newer"
	ReasonTie         = "tie"
)

// Decision is the result of Resolve.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Resolve applies last-writer-wins to one entity. An unsynced local version
// always wins because its pending change will overwrite the remote one.
// Otherwise the strictly newer updated_at wins and ties keep local.
func Resolve(local, remote models.Record) Decision {
	switch {
	case !local.Synced:
		return Decision{KeepLocal, ReasonUnsynced}
	case remote.UpdatedAt.After(local.UpdatedAt):
		return Decision{AdoptRemote, ReasonRemoteNewer}
	case local.UpdatedAt.After(remote.UpdatedAt):
		return Decision{KeepLocal, ReasonLocalNewer}
	}
	return Decision{KeepLocal, ReasonTie}
}

// Apply returns the record that survives the decision. An adopted remote
// version keeps the local id and creation time and is marked synced.
func Apply(local, remote models.Record, d Decision) models.Record {
	if d.Outcome == KeepLocal {
		return local.Clone()
	}
	out := remote.Clone()
	out.LocalID = local.LocalID
	out.CreatedAt = local.CreatedAt
	out.Synced = true
	return out
}

// Replacement records a local synced version overwritten by a newer remote
// one.
type Replacement struct {
	Local  models.Record
	Remote models.Record
}

// Result is the outcome of a collection merge.
type Result struct {
	// Records is the merged collection: local entities in their existing
	// order followed by adopted remote-only entities.
	Records []models.Record

	Adopted  []models.Record // remote-only, new locally
	Replaced []Replacement   // local synced, replaced by newer remote
	Linked   []models.Record // local unconfirmed, matched by echoed local id
	Dropped  []models.Record // local synced, gone remotely
	Kept     int             // local versions that won
}

// Collection merges a local collection with the remote listing of the same
// collection. Remote entities are matched by server id, or by the local id
// the remote echoes back for creates whose acknowledgement was lost.
// Local-only unsynced entities are kept, local synced entities missing
// remotely are dropped, and remote-only entities are adopted unless their
// server id or echoed local id is in tombstones (a local delete is still
// queued for them).
//
// Adopted records carry the echoed local id when the remote knows one and
// an empty LocalID otherwise; the caller assigns ids to those.
func Collection(local, remote []models.Record, tombstones map[string]bool) Result {
	return CollectionAsOf(local, remote, tombstones, nil)
}

// CollectionAsOf is Collection for a remote listing that may predate some
// local confirmations. confirmed maps local ids to the server ids they had
// when the listing was requested; a synced entity missing remotely is only
// dropped if it was already confirmed under the same server id. A nil map
// trusts every synced entity.
func CollectionAsOf(local, remote []models.Record, tombstones map[string]bool, confirmed map[string]string) Result {
	byServer := make(map[string]models.Record, len(remote))
	byLocal := make(map[string]models.Record, len(remote))
	for _, r := range remote {
		if tombstones[r.ServerID] || (r.LocalID != "" && tombstones[r.LocalID]) {
			continue
		}
		byServer[r.ServerID] = r
		if r.LocalID != "" {
			byLocal[r.LocalID] = r
		}
	}

	var res Result
	matched := make(map[string]bool, len(remote))
	localIDs := make(map[string]bool, len(local))
	for _, l := range local {
		localIDs[l.LocalID] = true

		r, ok := byServer[l.ServerID]
		if l.ServerID == "" {
			r, ok = byLocal[l.LocalID]
		}

		switch {
		case ok:
			matched[r.ServerID] = true
			if l.ServerID == "" {
				linked := l.Clone()
				linked.ServerID = r.ServerID
				res.Linked = append(res.Linked, linked)
				res.Records = append(res.Records, linked)
				res.Kept++
				continue
			}
			d := Resolve(l, r)
			out := Apply(l, r, d)
			if d.Outcome == AdoptRemote {
				res.Replaced = append(res.Replaced, Replacement{Local: l.Clone(), Remote: out})
			} else {
				res.Kept++
			}
			res.Records = append(res.Records, out)
		case !l.Synced || l.ServerID == "":
			res.Records = append(res.Records, l.Clone())
			res.Kept++
		case confirmed != nil && confirmed[l.LocalID] != l.ServerID:
			// Confirmed after the listing was taken
			res.Records = append(res.Records, l.Clone())
			res.Kept++
		default:
			res.Dropped = append(res.Dropped, l.Clone())
		}
	}

	var adopted []models.Record
	for _, r := range byServer {
		if matched[r.ServerID] {
			continue
		}
		a := r.Clone()
		a.Synced = true
		if localIDs[a.LocalID] {
			a.LocalID = ""
		}
		adopted = append(adopted, a)
	}
	sort.Slice(adopted, func(i, j int) bool {
		a, b := adopted[i], adopted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ServerID < b.ServerID
	})
	res.Adopted = adopted
	res.Records = append(res.Records, adopted...)
	return res
}
