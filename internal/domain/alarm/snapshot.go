package alarm

import "time"

// Record is one active alarm reported by a source.
type Record struct {
	// ID names the alarm, e.g. "system.cpu.10min_cpu_usage".
	ID string
	// StatusChangedAt is when the alarm last changed status.
	// The zero value means the source did not report a usable timestamp.
	StatusChangedAt time.Time
	// Host is the host name that owns the alarm.
	Host string
}

// Snapshot is the result of polling one Source during one cycle.
type Snapshot struct {
	// Source is the polled source.
	Source Source
	// Hostname is the name the source reported for itself.
	Hostname string
	// Alarms are the records returned by the source, in stable order.
	Alarms []Record
	// Err is set when the source could not be read.
	Err error
}

// Succeeded builds a successful snapshot.
func Succeeded(src Source, hostname string, alarms []Record) Snapshot {
	return Snapshot{
		Source:   src,
		Hostname: hostname,
		Alarms:   alarms,
	}
}

// Failed builds a snapshot for a source that could not be read.
func Failed(src Source, err error) Snapshot {
	return Snapshot{
		Source: src,
		Err:    err,
	}
}

// Failed reports whether the source could not be read.
func (s Snapshot) Failed() bool {
	return s.Err != nil
}

// Active reports whether the snapshot needs attention: the source failed or
// at least one alarm is present.
func (s Snapshot) Active() bool {
	return s.Failed() || len(s.Alarms) > 0
}

// Host returns the reported host name, falling back to the source label.
func (s Snapshot) Host() string {
	if s.Hostname != "" {
		return s.Hostname
	}

	return s.Source.Label()
}
