package anonymizer

import "math"

// GPT-4o-mini published per-token prices (USD per million tokens) and the
// fixed USD→KRW conversion rate used for estimates.
const (
	inputCostPerMillion  = 0.15
	outputCostPerMillion = 0.60
	krwPerUSD            = 1300
)

// EstimateCost converts token usage into a dollar and won cost estimate
func EstimateCost(usage *TokenUsage) *CostEstimate {
	if usage == nil {
		return nil
	}

	usd := float64(usage.PromptTokens)/1e6*inputCostPerMillion +
		float64(usage.CompletionTokens)/1e6*outputCostPerMillion

	return &CostEstimate{
		USD:          math.Round(usd*1e6) / 1e6,
		KRW:          int64(math.Ceil(usd * krwPerUSD)),
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}
}
