package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/rollup"
)

const (
	defaultRecentLimit = 500
	maxRecentLimit     = 5000
)

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", defaultRecentLimit, 1, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items := s.Sinks.Ring.Snapshot(limit)
	if items == nil {
		items = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type historyQuery struct {
	kind    domain.Kind
	minutes int
	target  string
}

func parseHistory(r *http.Request) (historyQuery, error) {
	q := r.URL.Query()
	kind, err := domain.ParseKind(q.Get("kind"))
	if err != nil {
		return historyQuery{}, err
	}
	minutes, err := intParam(q, "minutes", 60, 1, 1440)
	if err != nil {
		return historyQuery{}, err
	}
	return historyQuery{kind: kind, minutes: minutes, target: q.Get("target")}, nil
}

// handleSeries buckets raw samples on the fly with a caller-chosen step.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	hq, err := parseHistory(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := intParam(r.URL.Query(), "step", 60, 15, 3600)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if hq.target != "" {
		if _, ok := findTarget(s.Registry.Snapshot().Targets(), hq.kind, hq.target); !ok {
			writeError(w, http.StatusNotFound, "unknown target")
			return
		}
	}

	since := s.now().Add(-time.Duration(hq.minutes) * time.Minute)
	samples, err := s.Store.FetchSamples(r.Context(), hq.kind, since, time.Time{}, repo.Filter{TargetID: hq.target})
	if err != nil {
		s.Logger.Error("series_query_failed", zap.String("kind", string(hq.kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    hq.kind,
		"minutes": hq.minutes,
		"step":    step,
		"points":  rollup.Series(samples, time.Duration(step)*time.Second),
	})
}

// handleRollups lists stored per-minute aggregates. A target id is resolved
// to its grouping fields through the current configuration.
func (s *Server) handleRollups(w http.ResponseWriter, r *http.Request) {
	hq, err := parseHistory(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var f repo.Filter
	if hq.target != "" {
		t, ok := findTarget(s.Registry.Snapshot().Targets(), hq.kind, hq.target)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown target")
			return
		}
		g := groupOf(t)
		f.Group = &g
	}

	since := s.now().Add(-time.Duration(hq.minutes) * time.Minute)
	rows, err := s.Store.ListAggregates(r.Context(), hq.kind, since, time.Time{}, f)
	if err != nil {
		s.Logger.Error("rollups_query_failed", zap.String("kind", string(hq.kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    hq.kind,
		"minutes": hq.minutes,
		"rows":    rows,
	})
}

func findTarget(list []domain.Target, kind domain.Kind, id string) (domain.Target, bool) {
	for _, t := range list {
		if t.TargetKind() == kind && t.TargetID() == id {
			return t, true
		}
	}
	return nil, false
}

// groupOf returns the aggregate grouping fields a target's samples fall
// under. DNS rows are split by answering resolver, so it is left open.
func groupOf(t domain.Target) domain.GroupKey {
	switch v := t.(type) {
	case domain.TCPTarget:
		return domain.GroupKey{Host: v.Host, Port: v.Port}
	case domain.DNSTarget:
		return domain.GroupKey{FQDN: v.FQDN}
	case domain.HTTPTarget:
		return domain.GroupKey{URL: v.URL, Method: v.Method}
	}
	return domain.GroupKey{}
}
