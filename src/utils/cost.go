package utils

import "strings"

// Pricing per 1M tokens (as of 2025)
const (
	GPT4oInputPer1M  = 2.50
	GPT4oOutputPer1M = 10.00

	GPT4oMiniInputPer1M  = 0.15
	GPT4oMiniOutputPer1M = 0.60

	// Llama-class models on Groq-style hosted endpoints
	LlamaInputPer1M  = 0.10
	LlamaOutputPer1M = 0.10
)

// EstimateTokenCount estimates token count from text (rough
// approximation, ~1 token per 4 characters of English).
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	tokenCount := len(text) / 4
	if tokenCount < 10 {
		tokenCount = 10
	}
	return tokenCount
}

// EstimateCost returns the estimated USD cost of a completion given its
// token counts and the model that served it.
func EstimateCost(inputTokens, outputTokens int, model string) float64 {
	var inputPer1M, outputPer1M float64

	switch {
	case strings.Contains(strings.ToLower(model), "gpt-4o-mini"):
		inputPer1M, outputPer1M = GPT4oMiniInputPer1M, GPT4oMiniOutputPer1M
	case strings.Contains(strings.ToLower(model), "gpt-4"):
		inputPer1M, outputPer1M = GPT4oInputPer1M, GPT4oOutputPer1M
	case strings.Contains(strings.ToLower(model), "llama"):
		inputPer1M, outputPer1M = LlamaInputPer1M, LlamaOutputPer1M
	default:
		inputPer1M, outputPer1M = GPT4oMiniInputPer1M, GPT4oMiniOutputPer1M
	}

	return float64(inputTokens)*inputPer1M/1e6 + float64(outputTokens)*outputPer1M/1e6
}
