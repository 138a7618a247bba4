package cost

// Rate is a model's USD price per 1000 tokens, input and output priced
// separately (most providers charge output at a higher rate).
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// PricingTable resolves real, but illustrative, request-cost numbers
// (spec.md Open Question 2: costs must be non-zero, not a 0.0
// placeholder). Figures are US dollars per 1000 tokens as published by
// providers at the time this table was written; they are not kept in
// sync with live pricing and exist to make cost accounting exercise
// real arithmetic rather than stand in for a billing integration.
type PricingTable struct {
	rates       map[string]Rate
	defaultRate Rate
}

func DefaultPricingTable() *PricingTable {
	return &PricingTable{
		rates: map[string]Rate{
			"gpt-4":           {InputPer1K: 0.03, OutputPer1K: 0.06},
			"gpt-4-turbo":     {InputPer1K: 0.01, OutputPer1K: 0.03},
			"gpt-4o":          {InputPer1K: 0.005, OutputPer1K: 0.015},
			"gpt-3.5-turbo":   {InputPer1K: 0.0005, OutputPer1K: 0.0015},
			"claude-3-opus":   {InputPer1K: 0.015, OutputPer1K: 0.075},
			"claude-3-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-haiku":  {InputPer1K: 0.00025, OutputPer1K: 0.00125},
		},
		defaultRate: Rate{InputPer1K: 0.002, OutputPer1K: 0.004},
	}
}

// RateFor returns the configured rate for model, or the table's default
// fallback rate if model is unknown.
func (p *PricingTable) RateFor(model string) Rate {
	if r, ok := p.rates[model]; ok {
		return r
	}
	return p.defaultRate
}

// CostMicros returns the 6-decimal fixed-point USD cost (micros, 1 USD
// == 1_000_000) of a call against model using inputTokens/outputTokens.
func (p *PricingTable) CostMicros(model string, inputTokens, outputTokens int) int64 {
	rate := p.RateFor(model)
	inputCost := float64(inputTokens) / 1000 * rate.InputPer1K
	outputCost := float64(outputTokens) / 1000 * rate.OutputPer1K
	return int64((inputCost + outputCost) * 1_000_000)
}

// SetRate overrides or adds a per-model rate, for configuration-driven
// pricing updates without redeploying.
func (p *PricingTable) SetRate(model string, rate Rate) {
	if p.rates == nil {
		p.rates = make(map[string]Rate)
	}
	p.rates[model] = rate
}
