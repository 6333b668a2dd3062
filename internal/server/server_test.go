package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/config"
	"github.com/casenetai/anonymizer/internal/detect"
	"github.com/casenetai/anonymizer/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := &logger.Logger{Logger: zap.NewNop()}
	cfg := config.GetDefaults()
	cfg.Engine.DefaultMethod = "rule"

	engine, err := anonymizer.New(anonymizer.Config{
		DefaultMethod: anonymizer.MethodRule,
	}, log, detect.NewRuleDetector(log))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	return New(cfg, log, engine, Options{})
}

// TestHandleAnonymize tests the anonymization endpoint over the router
func TestHandleAnonymize(t *testing.T) {
	srv := newTestServer(t)

	post := func(t *testing.T, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/v1/anonymize", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	t.Run("RuleAnonymization", func(t *testing.T) {
		rec := post(t, `{"text": "김철수 씨 연락처 010-1234-5678, 010-1234-5678", "method": "rule"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Success        bool   `json:"success"`
			AnonymizedText string `json:"anonymized_text"`
			Mappings       []anonymizer.Mapping
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Invalid response JSON: %v", err)
		}
		if !resp.Success {
			t.Error("Expected success")
		}
		if strings.Contains(resp.AnonymizedText, "김철수") ||
			strings.Contains(resp.AnonymizedText, "010-1234-5678") {
			t.Errorf("PII survived: %q", resp.AnonymizedText)
		}
		if strings.Count(resp.AnonymizedText, "[연락처_1]") != 2 {
			t.Errorf("Repeated phone should collapse to one tag: %q", resp.AnonymizedText)
		}
	})

	t.Run("EmptyTextRejected", func(t *testing.T) {
		rec := post(t, `{"text": ""}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("InvalidJSONRejected", func(t *testing.T) {
		rec := post(t, `{`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("UnavailableMethod", func(t *testing.T) {
		rec := post(t, `{"text": "본문", "method": "ai"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 for unconfigured detector, got %d", rec.Code)
		}
	})

	t.Run("InvalidMinConfidence", func(t *testing.T) {
		rec := post(t, `{"text": "본문", "method": "rule", "min_confidence": 2}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

// TestHandleHealth tests the health endpoint
func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status   string          `json:"status"`
		Services map[string]bool `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Unexpected status: %q", resp.Status)
	}
	if !resp.Services["rule"] || resp.Services["ai"] || resp.Services["ner"] {
		t.Errorf("Unexpected service availability: %v", resp.Services)
	}
}

// TestHandleReportMappings tests the mappings endpoint without a store
func TestHandleReportMappings(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/42/mappings", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a store, got %d", rec.Code)
	}
}
