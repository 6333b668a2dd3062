package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const openAISystemPrompt = "당신은 노인보호전문기관 상담 문서 전문 익명화 AI입니다. " +
	"개인정보보호법을 준수하며 정확하고 일관성 있게 개인정보를 탐지합니다."

// OpenAIConfig contains the AI detector backend configuration
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	MinConfidence     float64
}

// OpenAIDetector extracts PII through an OpenAI-compatible chat-completion
// endpoint with a structured JSON prompt. Confidence comes from the model's
// self-reported score.
type OpenAIDetector struct {
	config  OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewOpenAIDetector creates the AI detector. A missing API key makes the
// backend unavailable.
func NewOpenAIDetector(cfg OpenAIConfig, log *logger.Logger) (*OpenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not configured", anonymizer.ErrDetectorUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.7
	}

	return &OpenAIDetector{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  log,
	}, nil
}

// Source identifies this backend
func (d *OpenAIDetector) Source() anonymizer.Source {
	return anonymizer.SourceAI
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *anonymizer.TokenUsage `json:"usage"`
}

// Detect sends the extraction prompt and normalizes the JSON response.
// Entities below the confidence threshold are dropped before returning.
func (d *OpenAIDetector) Detect(ctx context.Context, text string, opts anonymizer.DetectOptions) (anonymizer.Detection, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return anonymizer.Detection{}, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}

	request := chatRequest{
		Model: d.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: buildExtractionPrompt(text)},
		},
		Temperature: 0.1,
	}
	request.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(request)
	if err != nil {
		return anonymizer.Detection{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return anonymizer.Detection{}, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return anonymizer.Detection{}, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return anonymizer.Detection{}, fmt.Errorf("%w: %v", anonymizer.ErrDetectorTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return anonymizer.Detection{}, fmt.Errorf("%w: status %d from %s",
			anonymizer.ErrDetectorTransport, resp.StatusCode, d.config.Model)
	}

	var chat chatResponse
	if err := json.Unmarshal(responseBody, &chat); err != nil {
		return anonymizer.Detection{}, fmt.Errorf("%w: %v", anonymizer.ErrDetectorParse, err)
	}
	if len(chat.Choices) == 0 {
		return anonymizer.Detection{}, fmt.Errorf("%w: response carried no choices", anonymizer.ErrDetectorParse)
	}

	entities, err := parseEntityJSON([]byte(chat.Choices[0].Message.Content), anonymizer.SourceAI, 0.8)
	if err != nil {
		return anonymizer.Detection{}, err
	}

	minConfidence := opts.MinConfidence
	if minConfidence == 0 {
		minConfidence = d.config.MinConfidence
	}
	entities = filterByConfidence(entities, minConfidence)
	entities, dropped := validateEntities(text, entities)

	d.logger.Debug("AI detection complete",
		zap.String("model", d.config.Model),
		zap.Int("entities", len(entities)),
		zap.Int("dropped", dropped),
		zap.Duration("duration", time.Since(start)),
	)

	return anonymizer.Detection{
		Entities: entities,
		Usage:    chat.Usage,
		Dropped:  dropped,
	}, nil
}

// buildExtractionPrompt frames the six PII categories and the expected
// JSON schema in Korean, mirroring the counseling-document domain
func buildExtractionPrompt(text string) string {
	return `다음 노인보호 상담 텍스트에서 개인정보를 찾아 JSON으로 추출하세요.

【탐지 대상】
- PERSON: 사람 이름 (실명, 별칭 포함)
- PHONE: 전화번호
- EMAIL: 이메일 주소
- ADDRESS: 주소 (도로명, 지번 주소)
- ID_NUMBER: 주민등록번호, 여권번호 등
- FACILITY: 구체적인 시설명, 상호명
- DATE: 구체적인 날짜

【보존 대상 (추출하지 말 것)】
- 일반 명사: 정보, 상황, 관계, 노인, 가족
- 직책/호칭: 팀장, 과장, 선생님, 사회복지사
- 조직명: 노인보호전문기관, 경찰서, 보건소
- 일반 지역명: 서울, 경기도 (구체적 주소 제외)

【신뢰도 점수 기준】
- 1.0: 패턴이 명확한 개인정보 (전화번호, 주민번호)
- 0.9: 문맥상 명확한 실명
- 0.8: 추정 가능한 개인정보
- 0.7 이하: 애매한 경우

【출력 형식】
{"entities": [{"text": "원본 그대로의 텍스트", "type": "PERSON", "start": 0, "end": 3, "confidence": 0.95}]}

"text"는 반드시 입력 텍스트에 그대로 존재하는 문자열이어야 합니다.
위 형식의 JSON만 출력하세요 (다른 설명 없이).

【입력 텍스트】
` + text
}
