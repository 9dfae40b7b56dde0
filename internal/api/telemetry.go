package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// maxBatchMeasurements caps how many IDs one POST /publish may name.
const maxBatchMeasurements = 100

// MeasurementView describes one measurement for API responses.
type MeasurementView struct {
	ID     string   `json:"id"`
	Bucket string   `json:"bucket"`
	Prefix string   `json:"prefix"`
	URL    string   `json:"url"`
	Policy string   `json:"policy"`
	Fields []string `json:"fields"`

	// Line is the current rendering without a timestamp; Error is set instead
	// when the measurement would be skipped.
	Line  string `json:"line,omitempty"`
	Error string `json:"error,omitempty"`
}

func measurementView(m *telemetry.Measurement, withLine bool) MeasurementView {
	v := MeasurementView{
		ID:     m.ID(),
		Bucket: m.Bucket(),
		Prefix: m.Prefix(),
		URL:    m.URL(),
		Policy: m.Policy().String(),
		Fields: m.FieldKeys(),
	}
	if withLine {
		line, err := m.Render(0, false)
		if err != nil {
			v.Error = err.Error()
		} else {
			v.Line = line
		}
	}
	return v
}

// handleListMeasurements returns all measurements in declaration order.
func (s *Server) handleListMeasurements(w http.ResponseWriter, _ *http.Request) {
	ms := s.publisher.Measurements()
	views := make([]MeasurementView, len(ms))
	for i, m := range ms {
		views[i] = measurementView(m, false)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"measurements": views,
		"count":        len(views),
	})
}

// handleGetMeasurement returns one measurement with a preview of its line.
func (s *Server) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	m, err := s.publisher.Measurement(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "measurement not found")
		return
	}
	writeJSON(w, http.StatusOK, measurementView(m, true))
}

// handlePublishMeasurement publishes one measurement now.
//
// The response is 200 when the line was written, 202 when it failed and was
// backlogged, 502 when it failed and was discarded, and 422 when the
// measurement had nothing to send.
func (s *Server) handlePublishMeasurement(w http.ResponseWriter, r *http.Request) {
	m, err := s.publisher.Measurement(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "measurement not found")
		return
	}

	res := s.publisher.Publish(r.Context(), m)
	writeJSON(w, publishStatusCode(res.Result), res)
}

func publishStatusCode(r telemetry.Result) int {
	switch r.Status {
	case telemetry.StatusPublished:
		return http.StatusOK
	case telemetry.StatusSkipped:
		return http.StatusUnprocessableEntity
	case telemetry.StatusFailed:
		if r.Backlogged {
			return http.StatusAccepted
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type publishBatchRequest struct {
	Measurements []string `json:"measurements"`
}

// handlePublishBatch publishes several measurements with one timestamp.
// Per-measurement outcomes are in the body; the status is 200 whenever the
// request itself was valid.
func (s *Server) handlePublishBatch(w http.ResponseWriter, r *http.Request) {
	var req publishBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Measurements) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "measurements must not be empty")
		return
	}
	if len(req.Measurements) > maxBatchMeasurements {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "too many measurements")
		return
	}

	res, err := s.publisher.PublishIDs(r.Context(), req.Measurements)
	if errors.Is(err, telemetry.ErrMeasurementNotFound) {
		writeNotFound(w, err.Error())
		return
	}
	if err != nil {
		writeInternalError(w, "publish failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   res.Results,
		"requests":  res.Requests,
		"published": res.Published(),
		"drain":     res.Drain,
	})
}

// handleGetBacklog returns backlog status. With ?entries=true the queued
// lines are included, oldest first.
func (s *Server) handleGetBacklog(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": s.publisher.BacklogStatus()}
	if r.URL.Query().Get("entries") == "true" {
		entries := s.publisher.SnapshotBacklog()
		if entries == nil {
			entries = []telemetry.Entry{}
		}
		body["entries"] = entries
	}
	writeJSON(w, http.StatusOK, body)
}

// handleDrainBacklog writes one drain batch now.
func (s *Server) handleDrainBacklog(w http.ResponseWriter, r *http.Request) {
	if !s.publisher.BacklogStatus().Configured {
		writeError(w, http.StatusConflict, ErrCodeConflict, "backlog is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.publisher.DrainBacklog(r.Context()))
}

// handleListSensors returns the latest state of every sensor.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	snaps := s.sensors.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": snaps,
		"count":   len(snaps),
	})
}
