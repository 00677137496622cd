package alarm

import (
	"net"
	"strconv"
)

// Kind selects the protocol used to read alarms from a Source.
type Kind string

const (
	// KindNetdata reads the netdata /api/v1/alarms endpoint.
	KindNetdata Kind = "netdata"
	// KindPrometheus reads ALERTS_FOR_STATE from a Prometheus /federate endpoint.
	KindPrometheus Kind = "prometheus"
)

const (
	// DefaultNetdataPort is the port netdata listens on out of the box.
	DefaultNetdataPort = 19999
	// DefaultPrometheusPort is the port Prometheus listens on out of the box.
	DefaultPrometheusPort = 9090
	// DefaultScheme is used when a source does not specify one.
	DefaultScheme = "http"
)

// Source identifies one monitored host. It is immutable for the process lifetime.
type Source struct {
	// Name is an optional human label; Address is used when it is empty.
	Name string
	// Kind selects the client implementation.
	Kind Kind
	// Address is the host name or IP of the monitored host.
	Address string
	// Port overrides the kind's default port when positive.
	Port int
	// Scheme is http or https.
	Scheme string
}

// Label returns the name used for the source in messages and logs.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}

	return s.Address
}

// HostPort returns address:port with the kind's default port applied.
func (s Source) HostPort() string {
	port := s.Port
	if port <= 0 {
		port = DefaultNetdataPort
		if s.Kind == KindPrometheus {
			port = DefaultPrometheusPort
		}
	}

	return net.JoinHostPort(s.Address, strconv.Itoa(port))
}

// BaseURL returns scheme://address:port without a trailing slash.
func (s Source) BaseURL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	return scheme + "://" + s.HostPort()
}
