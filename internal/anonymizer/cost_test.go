package anonymizer

import "testing"

// TestEstimateCost tests the token price arithmetic
func TestEstimateCost(t *testing.T) {
	t.Run("NilUsage", func(t *testing.T) {
		if EstimateCost(nil) != nil {
			t.Error("Expected nil estimate for nil usage")
		}
	})

	t.Run("MillionTokenBaseline", func(t *testing.T) {
		cost := EstimateCost(&TokenUsage{
			PromptTokens:     1_000_000,
			CompletionTokens: 1_000_000,
			TotalTokens:      2_000_000,
		})

		if cost.USD != 0.75 {
			t.Errorf("Expected 0.75 USD, got %f", cost.USD)
		}
		if cost.KRW != 975 {
			t.Errorf("Expected 975 KRW, got %d", cost.KRW)
		}
	})

	t.Run("KRWRoundsUp", func(t *testing.T) {
		// 1000 prompt tokens cost 0.00015 USD = 0.195 KRW, billed as 1.
		cost := EstimateCost(&TokenUsage{PromptTokens: 1000, TotalTokens: 1000})
		if cost.KRW != 1 {
			t.Errorf("Expected KRW ceiling of 1, got %d", cost.KRW)
		}
	})

	t.Run("TokenCountsCarried", func(t *testing.T) {
		cost := EstimateCost(&TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150})
		if cost.InputTokens != 120 || cost.OutputTokens != 30 || cost.TotalTokens != 150 {
			t.Errorf("Token counts not carried through: %+v", cost)
		}
	})
}
