package alarm

import (
	"fmt"
	"strings"
)

// Glyphs are the symbols used to decorate rendered text.
type Glyphs struct {
	Started  string
	Stopped  string
	Warning  string
	Alarm    string
	AllClear string
}

// DefaultGlyphs returns the emoji set used in chat messages.
func DefaultGlyphs() Glyphs {
	return Glyphs{
		Started:  "❤",
		Stopped:  "\U0001F494",
		Warning:  "⚠",
		Alarm:    "\U0001F6A8",
		AllClear: "✔",
	}
}

// Render turns a filtered snapshot into its status block.
// The result is never empty and never ends with a newline.
func Render(snapshot Snapshot, glyphs Glyphs) string {
	if snapshot.Failed() {
		return fmt.Sprintf("%s Error reading alarms from %s", glyphs.Warning, snapshot.Source.Label())
	}

	if len(snapshot.Alarms) == 0 {
		return fmt.Sprintf("%s No alarms on %s", glyphs.AllClear, snapshot.Host())
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s There are %d alarm(s) on %s:", glyphs.Alarm, len(snapshot.Alarms), snapshot.Host())

	for _, record := range snapshot.Alarms {
		b.WriteString("\n  - ")
		b.WriteString(record.ID)
	}

	return b.String()
}

// Compose joins the identity line and the per-source blocks, in order,
// into the combined message.
func Compose(identity string, blocks []string) string {
	return identity + "\n" + strings.Join(blocks, "\n")
}
