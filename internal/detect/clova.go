package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/logger"
	"go.uber.org/zap"
)

const clovaSystemPrompt = "당신은 한국어 개인정보 탐지 전문가입니다. " +
	"텍스트에서 개인정보를 JSON 형태로 정확하게 추출합니다."

// ClovaConfig contains the Korean NER detector backend configuration
type ClovaConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Model        string
	Timeout      time.Duration
}

// ClovaDetector extracts PII through the CLOVA Studio chat-completion
// endpoint. On any backend failure it degrades to a reduced regex-only
// extraction instead of raising, so hybrid pipelines stay resilient to this
// backend's outages.
type ClovaDetector struct {
	config ClovaConfig
	client *http.Client
	logger *logger.Logger

	fallbackPhone *regexp.Regexp
	fallbackEmail *regexp.Regexp
	fallbackID    *regexp.Regexp
	fallbackName  *regexp.Regexp
}

// fallbackNameExclusions are common nouns the reduced name pattern would
// otherwise pick up
var fallbackNameExclusions = map[string]bool{
	"정보": true, "상황": true, "관계": true, "노인": true, "가족": true,
	"이웃": true, "친구": true, "부모": true, "자녀": true, "어르신": true,
}

// NewClovaDetector creates the NER detector. Missing credentials make the
// backend unavailable.
func NewClovaDetector(cfg ClovaConfig, log *logger.Logger) (*ClovaDetector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: CLOVA credentials not configured", anonymizer.ErrDetectorUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://clovastudio.stream.ntruss.com"
	}
	if cfg.Model == "" {
		cfg.Model = "HCX-DASH-001"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}

	return &ClovaDetector{
		config:        cfg,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        log,
		fallbackPhone: regexp.MustCompile(`\d{2,3}-\d{3,4}-\d{4}|\d{10,11}`),
		fallbackEmail: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		fallbackID:    regexp.MustCompile(`\d{6}-[1-4]\d{6}`),
		fallbackName:  regexp.MustCompile(`([가-힣]{2,4})\s*(?:씨|님|선생님)`),
	}, nil
}

// Source identifies this backend
func (d *ClovaDetector) Source() anonymizer.Source {
	return anonymizer.SourceNER
}

type clovaRequest struct {
	Messages    []chatMessage `json:"messages"`
	TopP        float64       `json:"topP"`
	TopK        int           `json:"topK"`
	MaxTokens   int           `json:"maxTokens"`
	Temperature float64       `json:"temperature"`
	Seed        int           `json:"seed"`
}

type clovaResponse struct {
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"result"`
}

// Detect calls the NER endpoint and normalizes its response. Backend
// failure is absorbed into the reduced regex extraction; the Detection's
// Fallback field records why.
func (d *ClovaDetector) Detect(ctx context.Context, text string, opts anonymizer.DetectOptions) (anonymizer.Detection, error) {
	entities, err := d.extractEntities(ctx, text)
	fallback := ""
	if err != nil {
		fallback = err.Error()
		d.logger.Warn("NER backend failed, using regex fallback", zap.Error(err))
		entities = d.fallbackExtract(text)
	}

	entities = filterByConfidence(entities, opts.MinConfidence)
	entities, dropped := validateEntities(text, entities)

	return anonymizer.Detection{
		Entities: entities,
		Dropped:  dropped,
		Fallback: fallback,
	}, nil
}

// extractEntities performs the actual chat-completion call
func (d *ClovaDetector) extractEntities(ctx context.Context, text string) ([]anonymizer.Entity, error) {
	request := clovaRequest{
		Messages: []chatMessage{
			{Role: "system", Content: clovaSystemPrompt},
			{Role: "user", Content: buildExtractionPrompt(text)},
		},
		TopP:        0.8,
		MaxTokens:   2000,
		Temperature: 0.1,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/testapp/v1/api-tools/chat-completions/%s", d.config.BaseURL, d.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}
	req.Header.Set("X-NCP-CLOVASTUDIO-API-KEY", d.config.ClientSecret)
	req.Header.Set("X-NCP-APIGW-API-KEY", d.config.ClientID)
	req.Header.Set("X-NCP-CLOVASTUDIO-REQUEST-ID", fmt.Sprintf("anonymizer-%d", time.Now().UnixNano()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", anonymizer.ErrDetectorTransport, resp.StatusCode)
	}

	var clova clovaResponse
	if err := json.Unmarshal(responseBody, &clova); err != nil {
		return nil, fmt.Errorf("%w: %v", anonymizer.ErrDetectorParse, err)
	}
	if clova.Status.Code != "20000" {
		return nil, fmt.Errorf("%w: backend status %s (%s)",
			anonymizer.ErrDetectorTransport, clova.Status.Code, clova.Status.Message)
	}

	return parseEntityJSON([]byte(clova.Result.Message.Content), anonymizer.SourceNER, 0.8)
}

// fallbackExtract is the reduced offline extraction used when the backend
// is unreachable: phones, emails, resident IDs and honorific-suffixed names
func (d *ClovaDetector) fallbackExtract(text string) []anonymizer.Entity {
	var entities []anonymizer.Entity

	add := func(pattern *regexp.Regexp, entityType anonymizer.EntityType, confidence float64) {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			entities = append(entities, anonymizer.Entity{
				Original:   text[loc[0]:loc[1]],
				Type:       entityType,
				Confidence: confidence,
				Source:     anonymizer.SourceNER,
				Span:       &anonymizer.Span{Start: loc[0], End: loc[1]},
			})
		}
	}

	add(d.fallbackID, anonymizer.EntityIdentifier, 1.0)
	add(d.fallbackPhone, anonymizer.EntityPhone, 1.0)
	add(d.fallbackEmail, anonymizer.EntityEmail, 1.0)

	for _, loc := range d.fallbackName.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		if fallbackNameExclusions[name] {
			continue
		}
		entities = append(entities, anonymizer.Entity{
			Original:   name,
			Type:       anonymizer.EntityName,
			Confidence: 0.7,
			Source:     anonymizer.SourceNER,
			Span:       &anonymizer.Span{Start: loc[2], End: loc[3]},
		})
	}

	return entities
}
