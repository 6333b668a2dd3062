package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/events"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// anonymizeRequest is the POST /v1/anonymize body
type anonymizeRequest struct {
	Text          string  `json:"text"`
	Method        string  `json:"method,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	UseNER        *bool   `json:"use_ner,omitempty"`
}

// anonymizeResponse wraps the engine report with server-side metadata
type anonymizeResponse struct {
	*anonymizer.Report
	ReportID int64 `json:"report_id,omitempty"`
	CacheHit bool  `json:"cache_hit,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleAnonymize runs the pipeline for one document
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req anonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	opts := anonymizer.Options{
		Method:        anonymizer.Method(req.Method),
		MinConfidence: req.MinConfidence,
		UseNER:        req.UseNER == nil || *req.UseNER,
	}

	method := opts.Method
	if method == "" {
		method = anonymizer.Method(s.config.Engine.DefaultMethod)
		opts.Method = method
	}

	// Repeat uploads of the same document short-circuit on the cache.
	// Compare runs are never cached: their value is the live measurement.
	var cacheKey string
	if s.cache != nil && method != anonymizer.MethodCompare {
		cacheKey = s.cache.Key(req.Text, method, opts.MinConfidence)
		cached, err := s.cache.Get(r.Context(), cacheKey)
		if err != nil {
			log.Warn("Cache lookup failed", zap.Error(err))
		} else if cached != nil {
			log.Info("Cache hit", zap.String("method", string(method)))
			s.broadcastResult(requestID, cached, true)
			writeJSON(w, http.StatusOK, anonymizeResponse{Report: cached, CacheHit: true})
			return
		}
	}

	report, err := s.engine.Anonymize(r.Context(), req.Text, opts)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, anonymizer.ErrConfiguration):
			status = http.StatusBadRequest
		case errors.Is(err, anonymizer.ErrDetectorUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, anonymizer.ErrDetectorTransport), errors.Is(err, anonymizer.ErrDetectorParse):
			status = http.StatusBadGateway
		}
		log.Error("Anonymization failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	response := anonymizeResponse{Report: report}

	if s.store != nil && report.Method != anonymizer.MethodCompare {
		reportID, err := s.store.SaveReport(r.Context(), report)
		if err != nil {
			// Persistence is best-effort; the caller still gets the report.
			log.Error("Failed to persist report", zap.Error(err))
		} else {
			response.ReportID = reportID
		}
	}

	if cacheKey != "" {
		if err := s.cache.Set(r.Context(), cacheKey, report); err != nil {
			log.Warn("Cache store failed", zap.Error(err))
		}
	}

	s.broadcastResult(requestID, report, false)
	writeJSON(w, http.StatusOK, response)
}

// handleReportMappings returns a persisted report's mapping table
func (s *Server) handleReportMappings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "report store not enabled")
		return
	}

	reportID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	mappings, err := s.store.GetMappings(r.Context(), reportID)
	if err != nil {
		s.logger.Error("Failed to load mappings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load mappings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"report_id": reportID, "mappings": mappings})
}

// handleHealth reports per-detector availability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	methods := s.engine.AvailableMethods()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"services": map[string]bool{
			"rule": true,
			"ai":   s.engine.Has(anonymizer.SourceAI),
			"ner":  s.engine.Has(anonymizer.SourceNER),
		},
		"available_methods": methods,
		"timestamp":         time.Now().Format(time.RFC3339),
	})
}

// handleInfo reports build and configuration summary
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":           "anonymizer",
		"default_method": s.config.Engine.DefaultMethod,
		"min_confidence": s.config.Engine.MinConfidence,
		"cache_enabled":  s.cache != nil,
		"store_enabled":  s.store != nil,
	}
	if s.cache != nil {
		info["cache_stats"] = s.cache.Stats()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleWebSocket hands the connection to the event hub
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// broadcastResult pushes a processed-document event to dashboard clients
func (s *Server) broadcastResult(requestID string, report *anonymizer.Report, cacheHit bool) {
	s.hub.Broadcast(events.Event{
		Type:      events.EventTypeAnonymization,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.AnonymizationEvent{
			RequestID:    requestID,
			Method:       report.Method,
			Success:      report.Success,
			EntityCount:  report.Stats.TotalEntities,
			ByType:       report.Stats.ByType,
			Degraded:     report.FallbackReason != "",
			CacheHit:     cacheHit,
			ProcessingMS: report.ProcessingMS,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
