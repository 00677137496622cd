package alarm

import "time"

// Filter returns the records whose status has been stable for at least grace
// at now. Records without a timestamp are never eligible.
// The input slice is not modified.
func Filter(records []Record, now time.Time, grace time.Duration) []Record {
	eligible := make([]Record, 0, len(records))

	for _, record := range records {
		if record.StatusChangedAt.IsZero() {
			continue
		}

		if now.Sub(record.StatusChangedAt) < grace {
			continue
		}

		eligible = append(eligible, record)
	}

	return eligible
}

// FilterSnapshot applies Filter to the alarms of a successful snapshot.
func FilterSnapshot(snapshot Snapshot, now time.Time, grace time.Duration) Snapshot {
	if snapshot.Failed() {
		return snapshot
	}

	snapshot.Alarms = Filter(snapshot.Alarms, now, grace)

	return snapshot
}
