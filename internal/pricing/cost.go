package pricing

import (
	"sync"

	"go.uber.org/zap"
)

type Calculator struct {
	logger *zap.Logger
	warned sync.Map
}

func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

var defaultCalculator = NewCalculator(nil)

// CalculateCost prices a usage tuple with the package default calculator.
func CalculateCost(modelID string, inputTokens, outputTokens int64) float64 {
	return defaultCalculator.Cost(modelID, inputTokens, outputTokens)
}

// Cost returns the dollar cost of a usage tuple. Unknown models are priced at
// the Sonnet tier and logged once per model id.
func (c *Calculator) Cost(modelID string, inputTokens, outputTokens int64) float64 {
	inPrice, outPrice := fallbackInputPrice, fallbackOutputPrice
	if entry, ok := Lookup(modelID); ok {
		inPrice, outPrice = entry.InputPricePerMillion, entry.OutputPricePerMillion
	} else if _, seen := c.warned.LoadOrStore(modelID, struct{}{}); !seen {
		c.logger.Warn("unknown model, using default pricing",
			zap.String("model", modelID),
			zap.String("fallback", DefaultModelID),
		)
	}
	return float64(inputTokens)/1e6*inPrice + float64(outputTokens)/1e6*outPrice
}
