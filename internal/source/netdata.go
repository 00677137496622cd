package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
)

// netdataAlarmsPath is the netdata endpoint listing raised alarms.
const netdataAlarmsPath = "/api/v1/alarms"

// NetdataClient reads raised alarms from a netdata agent.
type NetdataClient struct {
	client *http.Client
}

// netdataResponse is the part of /api/v1/alarms the relay uses.
type netdataResponse struct {
	Hostname string                     `json:"hostname"`
	Alarms   map[string]json.RawMessage `json:"alarms"`
}

// netdataAlarm is one entry of the alarms object.
type netdataAlarm struct {
	LastStatusChange *int64 `json:"last_status_change"`
}

// NewNetdataClient creates a netdata client on top of httpClient.
func NewNetdataClient(httpClient *http.Client) *NetdataClient {
	return &NetdataClient{client: httpClient}
}

// Fetch implements Client.
func (c *NetdataClient) Fetch(ctx context.Context, src alarm.Source) (*Report, error) {
	resp, err := get(ctx, c.client, src.BaseURL()+netdataAlarmsPath, "application/json")
	if err != nil {
		return nil, unreachable(src, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var body netdataResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, unreachable(src, fmt.Errorf("decode alarms: %w", err))
	}

	return &Report{
		Hostname: body.Hostname,
		Alarms:   decodeNetdataAlarms(body.Alarms, body.Hostname),
	}, nil
}

// decodeNetdataAlarms converts the alarms object into records sorted by id.
// Entries without a usable last_status_change keep a zero timestamp.
func decodeNetdataAlarms(raw map[string]json.RawMessage, hostname string) []alarm.Record {
	records := make([]alarm.Record, 0, len(raw))

	for id, entry := range raw {
		record := alarm.Record{
			ID:   id,
			Host: hostname,
		}

		var decoded netdataAlarm
		if err := json.Unmarshal(entry, &decoded); err == nil &&
			decoded.LastStatusChange != nil && *decoded.LastStatusChange > 0 {
			record.StatusChangedAt = time.Unix(*decoded.LastStatusChange, 0)
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records
}
