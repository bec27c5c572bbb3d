package extract

import "github.com/abelbrown/intelbrief/internal/model"

// tierBase is the starting confidence for an event by anchor tier.
var tierBase = map[model.Tier]float64{
	model.TierA: 0.9,
	model.TierB: 0.7,
	model.TierC: 0.5,
	model.TierD: 0.3,
}

const (
	corroborationBonus = 0.1
	unverifiedCap      = 0.3
)

// Confidence scores how much an event built from c can be trusted.
//
// The anchor's tier sets the base; each of the second and third distinct
// source names adds 0.1. A cluster made only of tier-D items never exceeds
// 0.3. An empty cluster scores 0.
func Confidence(c model.Cluster) float64 {
	if c.Len() == 0 {
		return 0
	}

	conf := tierBase[c.Anchor().Tier]

	sources := make(map[string]struct{})
	allD := true
	for _, it := range c.Items {
		sources[it.SourceName] = struct{}{}
		if it.Tier != model.TierD {
			allD = false
		}
	}
	if len(sources) >= 2 {
		conf += corroborationBonus
	}
	if len(sources) >= 3 {
		conf += corroborationBonus
	}
	conf = model.ClampConfidence(conf)

	if allD && conf > unverifiedCap {
		conf = unverifiedCap
	}
	return conf
}
