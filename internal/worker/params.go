package worker

import (
	"fmt"

	"modelgate/internal/config"
	"modelgate/pkg/types"
)

// Params are the effective generation parameters for one call.
type Params struct {
	Temperature   float64
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64
}

// DefaultParams converts process-wide defaults into Params.
func DefaultParams(g config.GenerationDefaults) Params {
	return Params{
		Temperature:   g.EffectiveTemperature(),
		TopP:          g.TopP,
		MaxTokens:     g.MaxTokens,
		RepeatPenalty: g.RepeatPenalty,
	}
}

// Merge returns p with every non-nil override applied. p is not modified.
func (p Params) Merge(o types.Overrides) Params {
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if o.MaxTokens != nil {
		p.MaxTokens = *o.MaxTokens
	}
	if o.RepeatPenalty != nil {
		p.RepeatPenalty = *o.RepeatPenalty
	}
	return p
}

// temperature32 converts a sampling temperature for the backend. 0 is greedy
// decoding and passes through; only a negative value selects def.
func temperature32(v float64, def float32) float32 {
	if v < 0 {
		return def
	}
	return float32(v)
}

func toString(v any) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
