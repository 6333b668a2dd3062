package detect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casenetai/anonymizer/internal/anonymizer"
)

func chatCompletionResponse(t *testing.T, content string, usage *anonymizer.TokenUsage) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
		"usage": usage,
	})
	if err != nil {
		t.Fatalf("Failed to build response: %v", err)
	}
	return body
}

// TestOpenAIDetector tests the AI backend adapter against a stub server
func TestOpenAIDetector(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresAPIKey", func(t *testing.T) {
		_, err := NewOpenAIDetector(OpenAIConfig{}, testLogger())
		if !errors.Is(err, anonymizer.ErrDetectorUnavailable) {
			t.Errorf("Expected ErrDetectorUnavailable, got %v", err)
		}
	})

	t.Run("ExtractsEntities", func(t *testing.T) {
		text := "담당자 김철수, 연락처 010-1234-5678"
		var gotPath, gotAuth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")

			content := `{"entities": [
				{"text": "김철수", "type": "PERSON", "confidence": 0.93},
				{"text": "010-1234-5678", "type": "PHONE", "confidence": 0.99},
				{"text": "홍길동이라는 사람", "type": "PERSON", "confidence": 0.9}
			]}`
			w.Write(chatCompletionResponse(t, content,
				&anonymizer.TokenUsage{PromptTokens: 500, CompletionTokens: 80, TotalTokens: 580}))
		}))
		defer server.Close()

		detector, err := NewOpenAIDetector(OpenAIConfig{
			APIKey:            "test-key",
			BaseURL:           server.URL,
			RequestsPerSecond: 100,
		}, testLogger())
		if err != nil {
			t.Fatalf("Failed to create detector: %v", err)
		}

		detection, err := detector.Detect(ctx, text, anonymizer.DetectOptions{MinConfidence: 0.7})
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}

		if gotPath != "/v1/chat/completions" {
			t.Errorf("Wrong endpoint path: %q", gotPath)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("Wrong auth header: %q", gotAuth)
		}

		if len(detection.Entities) != 2 {
			t.Fatalf("Expected 2 entities, got %+v", detection.Entities)
		}
		if detection.Dropped != 1 {
			t.Errorf("Paraphrased original should count as dropped, got %d", detection.Dropped)
		}
		if detection.Usage == nil || detection.Usage.TotalTokens != 580 {
			t.Errorf("Usage not carried: %+v", detection.Usage)
		}
	})

	t.Run("ServerErrorIsTransport", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		detector, _ := NewOpenAIDetector(OpenAIConfig{
			APIKey:            "test-key",
			BaseURL:           server.URL,
			RequestsPerSecond: 100,
		}, testLogger())

		_, err := detector.Detect(ctx, "본문", anonymizer.DetectOptions{})
		if !errors.Is(err, anonymizer.ErrDetectorTransport) {
			t.Errorf("Expected ErrDetectorTransport, got %v", err)
		}
	})

	t.Run("NonJSONContentIsParseError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(chatCompletionResponse(t, "개인정보가 없습니다.", nil))
		}))
		defer server.Close()

		detector, _ := NewOpenAIDetector(OpenAIConfig{
			APIKey:            "test-key",
			BaseURL:           server.URL,
			RequestsPerSecond: 100,
		}, testLogger())

		_, err := detector.Detect(ctx, "본문", anonymizer.DetectOptions{})
		if !errors.Is(err, anonymizer.ErrDetectorParse) {
			t.Errorf("Expected ErrDetectorParse, got %v", err)
		}
	})

	t.Run("EmptyChoicesIsParseError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		detector, _ := NewOpenAIDetector(OpenAIConfig{
			APIKey:            "test-key",
			BaseURL:           server.URL,
			RequestsPerSecond: 100,
		}, testLogger())

		_, err := detector.Detect(ctx, "본문", anonymizer.DetectOptions{})
		if !errors.Is(err, anonymizer.ErrDetectorParse) {
			t.Errorf("Expected ErrDetectorParse, got %v", err)
		}
	})
}
