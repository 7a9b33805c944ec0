// Package planner derives grid price levels from user supplied bounds.
// It is pure computation with no I/O and is cheap enough to run on every
// form keystroke before a bot is created.
package planner

import (
	"bot-console-go/internal/models"
	"fmt"
	"math"
)

// ConfigError describes invalid planning input. It is reported inline at the
// originating form field and never reaches the network.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Plan is the result of partitioning a price band into grid levels.
type Plan struct {
	Levels []models.GridLevel
	Step   float64

	// EstimatedPerGridYieldPercent is (step/lower)*100 rounded to two
	// decimals. It ignores trading fees and slippage and is a rough
	// heuristic for display, not a guaranteed yield.
	EstimatedPerGridYieldPercent float64
}

// ComputePlan partitions [lowerPrice, upperPrice] into levelCount evenly
// spaced levels in ascending price order, indexed 1..N.
func ComputePlan(lowerPrice, upperPrice float64, levelCount int) (*Plan, error) {
	if lowerPrice <= 0 {
		return nil, &ConfigError{Field: "lower_price", Reason: "必须大于0"}
	}
	if upperPrice <= lowerPrice {
		return nil, &ConfigError{Field: "upper_price", Reason: "必须大于下界价格"}
	}
	if levelCount < 2 {
		return nil, &ConfigError{Field: "grid_count", Reason: "网格线数量至少为2"}
	}

	step := (upperPrice - lowerPrice) / float64(levelCount-1)
	levels := make([]models.GridLevel, 0, levelCount)
	for i := 0; i < levelCount; i++ {
		levels = append(levels, models.GridLevel{
			Index: i + 1,
			Price: lowerPrice + float64(i)*step,
		})
	}

	return &Plan{
		Levels:                       levels,
		Step:                         step,
		EstimatedPerGridYieldPercent: roundTo2(step / lowerPrice * 100),
	}, nil
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
