package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sample is the result of one probe execution. Exactly one of TCP, DNS or
// HTTP is set, matching Kind.
type Sample struct {
	Kind      Kind        `json:"kind"`
	TargetID  string      `json:"target_id,omitempty"`
	Timestamp time.Time   `json:"ts"`
	LatencyMS float64     `json:"latency_ms"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	TCP       *TCPDetail  `json:"tcp,omitempty"`
	DNS       *DNSDetail  `json:"dns,omitempty"`
	HTTP      *HTTPDetail `json:"http,omitempty"`
}

type TCPDetail struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DNSDetail struct {
	FQDN       string   `json:"fqdn"`
	RecordType string   `json:"record_type"`
	Resolver   string   `json:"resolver,omitempty"`
	Rcode      string   `json:"rcode,omitempty"`
	Answers    []string `json:"answers"`
}

type HTTPDetail struct {
	URL        string `json:"url"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code,omitempty"`
}

var ErrMalformedSample = errors.New("malformed sample")

// Validate checks that the detail block matches Kind.
func (s Sample) Validate() error {
	n := 0
	if s.TCP != nil {
		n++
	}
	if s.DNS != nil {
		n++
	}
	if s.HTTP != nil {
		n++
	}
	ok := n == 1 &&
		((s.Kind == KindTCP && s.TCP != nil) ||
			(s.Kind == KindDNS && s.DNS != nil) ||
			(s.Kind == KindHTTP && s.HTTP != nil))
	if !ok {
		return fmt.Errorf("%w: kind=%q", ErrMalformedSample, s.Kind)
	}
	if s.LatencyMS < 0 {
		return fmt.Errorf("%w: negative latency", ErrMalformedSample)
	}
	return nil
}

// Group returns the rollup grouping fields for the sample's kind.
func (s Sample) Group() GroupKey {
	switch {
	case s.TCP != nil:
		return GroupKey{Host: s.TCP.Host, Port: s.TCP.Port}
	case s.DNS != nil:
		return GroupKey{FQDN: s.DNS.FQDN, Resolver: s.DNS.Resolver}
	case s.HTTP != nil:
		return GroupKey{URL: s.HTTP.URL, Method: s.HTTP.Method}
	}
	return GroupKey{}
}

// Event is a Sample as distributed on the bus and kept in the ring.
type Event struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data Sample    `json:"data"`
}

func NewEvent(s Sample) Event {
	return Event{Type: string(s.Kind) + "_sample", TS: s.Timestamp, Data: s}
}
