package source

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
)

const (
	// alertsForStateMetric carries one series per pending or firing alert;
	// its value is the activeAt unix timestamp.
	alertsForStateMetric = "ALERTS_FOR_STATE"
	// federatePath is the Prometheus federation endpoint.
	federatePath = "/federate"
)

// PrometheusClient reads active alerts from a Prometheus server.
type PrometheusClient struct {
	client *http.Client
}

// NewPrometheusClient creates a Prometheus client on top of httpClient.
func NewPrometheusClient(httpClient *http.Client) *PrometheusClient {
	return &PrometheusClient{client: httpClient}
}

// Fetch implements Client. The hostname is the source label.
func (c *PrometheusClient) Fetch(ctx context.Context, src alarm.Source) (*Report, error) {
	query := url.Values{"match[]": {alertsForStateMetric}}

	resp, err := get(ctx, c.client, src.BaseURL()+federatePath+"?"+query.Encode(),
		string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, unreachable(src, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	families, err := parseFamilies(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, unreachable(src, err)
	}

	return &Report{
		Hostname: src.Label(),
		Alarms:   decodeAlertsForState(families[alertsForStateMetric], src.Label()),
	}, nil
}

// parseFamilies decodes a text exposition. A partial result is still a success.
func parseFamilies(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser

	families, err := parser.TextToMetricFamilies(r)
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}

	return families, nil
}

// decodeAlertsForState converts ALERTS_FOR_STATE samples into records sorted by id.
func decodeAlertsForState(family *dto.MetricFamily, fallbackHost string) []alarm.Record {
	if family == nil {
		return []alarm.Record{}
	}

	records := make([]alarm.Record, 0, len(family.GetMetric()))

	for _, metric := range family.GetMetric() {
		labels := make(map[string]string, len(metric.GetLabel()))
		for _, pair := range metric.GetLabel() {
			labels[pair.GetName()] = pair.GetValue()
		}

		id := labels["alertname"]
		if id == "" {
			id = alertsForStateMetric
		}

		host := fallbackHost
		if instance := labels["instance"]; instance != "" {
			id += " @ " + instance
			host = instance
		}

		records = append(records, alarm.Record{
			ID:              id,
			StatusChangedAt: activeAt(metric),
			Host:            host,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records
}

// activeAt reads the sample value as a unix timestamp in seconds.
func activeAt(metric *dto.Metric) time.Time {
	var value float64

	switch {
	case metric.GetGauge() != nil:
		value = metric.GetGauge().GetValue()
	case metric.GetUntyped() != nil:
		value = metric.GetUntyped().GetValue()
	default:
		return time.Time{}
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return time.Time{}
	}

	seconds, fraction := math.Modf(value)

	return time.Unix(int64(seconds), int64(fraction*float64(time.Second)))
}
