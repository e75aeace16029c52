package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

type tcpPingRequest struct {
	Host       string  `json:"host"`
	Port       int     `json:"port"`
	TimeoutSec float64 `json:"timeout_sec"`
}

type dnsQueryRequest struct {
	FQDN       string   `json:"fqdn"`
	RecordType string   `json:"record_type"`
	Resolvers  []string `json:"resolvers"`
	TimeoutSec float64  `json:"timeout_sec"`
}

type httpProbeRequest struct {
	URL        string  `json:"url"`
	Method     string  `json:"method"`
	TimeoutSec float64 `json:"timeout_sec"`
}

// timeoutFrom applies def when sec is zero and rejects values outside
// [lo, hi] seconds.
func timeoutFrom(sec, def, lo, hi float64) (time.Duration, bool) {
	if sec == 0 {
		sec = def
	}
	if sec < lo || sec > hi {
		return 0, false
	}
	return time.Duration(sec * float64(time.Second)), true
}

// Ad-hoc probes always answer 200; a failed probe is reported in the body.
// The sample goes to the live stream and recent history but is not stored.

func (s *Server) handlePingTCP(w http.ResponseWriter, r *http.Request) {
	var p tcpPingRequest
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.Host) == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Port == 0 {
		p.Port = 443
	}
	if p.Port < 1 || p.Port > 65535 {
		writeError(w, http.StatusBadRequest, "port must be between 1 and 65535")
		return
	}
	timeout, ok := timeoutFrom(p.TimeoutSec, 2, 0.1, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "timeout_sec must be between 0.1 and 10")
		return
	}

	smp := s.Probes.TCP.Probe(r.Context(), strings.TrimSpace(p.Host), p.Port, timeout)
	s.publish(smp)
	writeJSON(w, http.StatusOK, smp)
}

func (s *Server) handleDNSQuery(w http.ResponseWriter, r *http.Request) {
	var p dnsQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.FQDN) == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.RecordType == "" {
		p.RecordType = "A"
	}
	timeout, ok := timeoutFrom(p.TimeoutSec, 2, 0.1, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "timeout_sec must be between 0.1 and 10")
		return
	}

	smp := s.Probes.DNS.Probe(r.Context(), strings.TrimSpace(p.FQDN), strings.ToUpper(p.RecordType), p.Resolvers, timeout)
	s.publish(smp)
	writeJSON(w, http.StatusOK, smp)
}

func (s *Server) handleHTTPProbe(w http.ResponseWriter, r *http.Request) {
	var p httpProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !domain.IsValidHTTPURL(p.URL) {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.Method == "" {
		p.Method = http.MethodGet
	}
	timeout, ok := timeoutFrom(p.TimeoutSec, 5, 0.5, 30)
	if !ok {
		writeError(w, http.StatusBadRequest, "timeout_sec must be between 0.5 and 30")
		return
	}

	smp := s.Probes.HTTP.Probe(r.Context(), p.URL, strings.ToUpper(p.Method), timeout)
	s.publish(smp)
	writeJSON(w, http.StatusOK, smp)
}

func (s *Server) publish(smp domain.Sample) {
	if s.Sinks != nil {
		s.Sinks.Publish(smp)
	}
}
