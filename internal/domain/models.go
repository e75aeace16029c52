package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Kind string

const (
	KindTCP  Kind = "tcp"
	KindDNS  Kind = "dns"
	KindHTTP Kind = "http"
)

// Kinds lists every probe kind in a stable order.
var Kinds = []Kind{KindTCP, KindDNS, KindHTTP}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTCP, KindDNS, KindHTTP:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalid, s)
}

// Interval bounds, in seconds.
const (
	MinIntervalSec     = 0.5
	MaxIntervalSec     = 120.0
	DefaultIntervalSec = 5.0
)

// ErrInvalid marks a target that fails validation.
var ErrInvalid = errors.New("invalid target")

// Target is one configured probe destination.
type Target interface {
	TargetKind() Kind
	TargetID() string
	Interval() time.Duration
	Validate() error
}

type TCPTarget struct {
	ID          string  `json:"id" yaml:"id"`
	Host        string  `json:"host" yaml:"host"`
	Port        int     `json:"port" yaml:"port"`
	IntervalSec float64 `json:"interval_sec" yaml:"interval_sec"`
}

type DNSTarget struct {
	ID          string   `json:"id" yaml:"id"`
	FQDN        string   `json:"fqdn" yaml:"fqdn"`
	RecordType  string   `json:"record_type" yaml:"record_type"`
	Resolvers   []string `json:"resolvers,omitempty" yaml:"resolvers"`
	IntervalSec float64  `json:"interval_sec" yaml:"interval_sec"`
}

type HTTPTarget struct {
	ID          string  `json:"id" yaml:"id"`
	URL         string  `json:"url" yaml:"url"`
	Method      string  `json:"method" yaml:"method"`
	IntervalSec float64 `json:"interval_sec" yaml:"interval_sec"`
}

func (t TCPTarget) TargetKind() Kind { return KindTCP }
func (t TCPTarget) TargetID() string { return t.ID }
func (t TCPTarget) Interval() time.Duration { return seconds(t.IntervalSec) }
func (t DNSTarget) TargetKind() Kind { return KindDNS }
func (t DNSTarget) TargetID() string { return t.ID }
func (t DNSTarget) Interval() time.Duration { return seconds(t.IntervalSec) }
func (t HTTPTarget) TargetKind() Kind { return KindHTTP }
func (t HTTPTarget) TargetID() string { return t.ID }
func (t HTTPTarget) Interval() time.Duration { return seconds(t.IntervalSec) }

// WithDefaults fills zero-valued optional fields.
func (t TCPTarget) WithDefaults() TCPTarget {
	if t.Port == 0 {
		t.Port = 443
	}
	if t.IntervalSec == 0 {
		t.IntervalSec = DefaultIntervalSec
	}
	return t
}

func (t DNSTarget) WithDefaults() DNSTarget {
	if t.RecordType == "" {
		t.RecordType = "A"
	}
	t.RecordType = strings.ToUpper(t.RecordType)
	if t.IntervalSec == 0 {
		t.IntervalSec = DefaultIntervalSec
	}
	return t
}

func (t HTTPTarget) WithDefaults() HTTPTarget {
	if t.Method == "" {
		t.Method = "GET"
	}
	t.Method = strings.ToUpper(t.Method)
	if t.IntervalSec == 0 {
		t.IntervalSec = DefaultIntervalSec
	}
	return t
}

func (t TCPTarget) Validate() error {
	if err := validateCommon(t.ID, t.IntervalSec); err != nil {
		return err
	}
	if strings.TrimSpace(t.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalid)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, t.Port)
	}
	return nil
}

func (t DNSTarget) Validate() error {
	if err := validateCommon(t.ID, t.IntervalSec); err != nil {
		return err
	}
	if strings.TrimSpace(t.FQDN) == "" || strings.Contains(t.FQDN, "://") {
		return fmt.Errorf("%w: invalid fqdn %q", ErrInvalid, t.FQDN)
	}
	if t.RecordType == "" {
		return fmt.Errorf("%w: record_type is required", ErrInvalid)
	}
	return nil
}

func (t HTTPTarget) Validate() error {
	if err := validateCommon(t.ID, t.IntervalSec); err != nil {
		return err
	}
	if !IsValidHTTPURL(t.URL) {
		return fmt.Errorf("%w: invalid url %q", ErrInvalid, t.URL)
	}
	if t.Method == "" {
		return fmt.Errorf("%w: method is required", ErrInvalid)
	}
	return nil
}

// IsValidHTTPURL reports whether raw is an absolute http(s) URL with a host.
func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func validateCommon(id string, intervalSec float64) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if intervalSec < MinIntervalSec || intervalSec > MaxIntervalSec {
		return fmt.Errorf("%w: interval_sec %.2f outside [%.1f, %.0f]", ErrInvalid, intervalSec, MinIntervalSec, MaxIntervalSec)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
