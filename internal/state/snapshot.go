package state

import "time"

// Overall is the health of the whole target set.
type Overall string

const (
	OverallUp       Overall = "up"
	OverallDegraded Overall = "degraded"
	OverallDown     Overall = "down"
)

// Snapshot is a point-in-time copy of all records in configuration order.
// Record pointer fields are never written after a record is stored, so a
// snapshot stays valid while later rounds update the store.
type Snapshot struct {
	TakenAt time.Time
	Records []Record
}

// Get returns the record for the named target.
func (s Snapshot) Get(name string) (Record, bool) {
	for _, r := range s.Records {
		if r.Target.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

// Overall derives the overall status of the snapshot.
func (s Snapshot) Overall() Overall {
	return OverallStatus(s.Records)
}

// OverallStatus is up when every target is up, down when none is, and
// degraded otherwise. Targets not yet checked count as not up.
func OverallStatus(records []Record) Overall {
	up := 0
	for _, r := range records {
		if r.IsUp() {
			up++
		}
	}
	switch {
	case up == 0:
		return OverallDown
	case up == len(records):
		return OverallUp
	default:
		return OverallDegraded
	}
}
