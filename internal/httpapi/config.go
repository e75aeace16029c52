package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/targets"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Snapshot())
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var (
		st targets.State
		id string
	)
	switch kind {
	case domain.KindTCP:
		var t domain.TCPTarget
		if err = dec.Decode(&t); err == nil {
			id = t.ID
			st, err = s.Registry.AddTCP(t)
		}
	case domain.KindDNS:
		var t domain.DNSTarget
		if err = dec.Decode(&t); err == nil {
			id = t.ID
			st, err = s.Registry.AddDNS(t)
		}
	case domain.KindHTTP:
		var t domain.HTTPTarget
		if err = dec.Decode(&t); err == nil {
			id = t.ID
			st, err = s.Registry.AddHTTP(t)
		}
	}
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			// decode failure
			code = http.StatusBadRequest
		}
		writeError(w, code, err.Error())
		return
	}

	s.Logger.Info("config_target_added",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.Int64("version", st.Version),
	)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id := chi.URLParam(r, "id")

	st, err := s.Registry.Remove(kind, id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.Logger.Info("config_target_removed",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.Int64("version", st.Version),
	)
	writeJSON(w, http.StatusOK, st)
}
