package claude

import (
	"sort"

	"github.com/lumisage/chatscribe/pkg/types"
)

// DefaultModel is used when SummaryOptions leaves the model empty.
const DefaultModel = "claude-sonnet-4-20250514"

// healthCheckModel is the cheapest registered model; HealthCheck uses it so
// reachability probes cost next to nothing.
const healthCheckModel = "claude-3-5-haiku-20241022"

// ModelCost holds USD rates per 1000 tokens for one model.
type ModelCost struct {
	InputPer1K  float64
	OutputPer1K float64
}

// modelCosts is the static model registry. Requests naming a model outside
// this table fail with MODEL_UNAVAILABLE before any network I/O. The table
// is immutable after initialization.
var modelCosts = map[string]ModelCost{
	"claude-opus-4-20250514":     {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-sonnet-4-20250514":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-7-sonnet-20250219": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-haiku-20240307":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
}

// Cost returns the per-1k rates for model, or false if the model is not
// registered.
func Cost(model string) (ModelCost, bool) {
	c, ok := modelCosts[model]
	return c, ok
}

// KnownModel reports whether model is in the registry.
func KnownModel(model string) bool {
	_, ok := modelCosts[model]
	return ok
}

// Models returns the registered model identifiers in sorted order.
func Models() []string {
	names := make([]string, 0, len(modelCosts))
	for name := range modelCosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveModel applies the default and validates against the registry.
func resolveModel(model string) (string, *types.Error) {
	if model == "" {
		model = DefaultModel
	}
	if !KnownModel(model) {
		return "", types.NewModelUnavailable(model)
	}
	return model, nil
}

// computeCost converts token counts to USD for the given model.
func computeCost(model string, inputTokens, outputTokens int) float64 {
	c := modelCosts[model]
	return float64(inputTokens)/1000*c.InputPer1K + float64(outputTokens)/1000*c.OutputPer1K
}
