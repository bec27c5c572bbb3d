package scoring

import "github.com/abelbrown/intelbrief/internal/model"

// Dimension is one facet of stability and its weight in the overall score.
type Dimension struct {
	Name   string
	Weight float64
}

// KindWeights describes how strongly one event kind hits each dimension.
type KindWeights struct {
	Severity   float64            // base severity in [0, 1]
	Dimensions map[string]float64 // dimension name -> weight; absent means 0
}

// Config controls scoring. Kinds absent from Kinds score with
// DefaultSeverity and no dimension weights.
type Config struct {
	Dimensions      []Dimension
	Kinds           map[model.EventKind]KindWeights
	MinConfidence   float64
	LookbackDays    int
	DeltaPeriods    [3]int // days for Delta7d, Delta30d, Delta90d
	DefaultSeverity float64
}

// DefaultConfig returns the stock weights.
func DefaultConfig() Config {
	return Config{
		Dimensions: []Dimension{
			{Name: "political", Weight: 0.25},
			{Name: "security", Weight: 0.30},
			{Name: "economic", Weight: 0.25},
			{Name: "social", Weight: 0.20},
		},
		Kinds: map[model.EventKind]KindWeights{
			model.KindGovernmentChange:         {Severity: 0.7, Dimensions: map[string]float64{"political": 1.0, "economic": 0.3, "social": 0.3}},
			model.KindElection:                 {Severity: 0.3, Dimensions: map[string]float64{"political": 0.8, "social": 0.2}},
			model.KindSanctions:                {Severity: 0.6, Dimensions: map[string]float64{"economic": 1.0, "political": 0.4}},
			model.KindArmedConflict:            {Severity: 0.9, Dimensions: map[string]float64{"security": 1.0, "social": 0.5, "economic": 0.4}},
			model.KindCeasefire:                {Severity: 0.2, Dimensions: map[string]float64{"security": 0.3}},
			model.KindTerroristAttack:          {Severity: 0.8, Dimensions: map[string]float64{"security": 1.0, "social": 0.6}},
			model.KindCivilUnrest:              {Severity: 0.6, Dimensions: map[string]float64{"social": 1.0, "political": 0.5, "security": 0.3}},
			model.KindBorderIncident:           {Severity: 0.6, Dimensions: map[string]float64{"security": 0.8, "political": 0.4}},
			model.KindTradeRestriction:         {Severity: 0.5, Dimensions: map[string]float64{"economic": 1.0}},
			model.KindEconomicCrisis:           {Severity: 0.7, Dimensions: map[string]float64{"economic": 1.0, "social": 0.5}},
			model.KindInfrastructureDisruption: {Severity: 0.6, Dimensions: map[string]float64{"economic": 0.7, "security": 0.4, "social": 0.3}},
			model.KindNaturalDisaster:          {Severity: 0.6, Dimensions: map[string]float64{"social": 0.8, "economic": 0.6}},
			model.KindDiplomaticRupture:        {Severity: 0.5, Dimensions: map[string]float64{"political": 0.8, "security": 0.3}},
			model.KindMilitaryMobilization:     {Severity: 0.7, Dimensions: map[string]float64{"security": 0.9, "political": 0.3}},
			model.KindCyberIncident:            {Severity: 0.5, Dimensions: map[string]float64{"security": 0.6, "economic": 0.4}},
			model.KindLegalChange:              {Severity: 0.3, Dimensions: map[string]float64{"political": 0.6, "economic": 0.3}},
			model.KindStrategicInvestment:      {Severity: 0.3, Dimensions: map[string]float64{"economic": 0.6, "political": 0.2}},
		},
		MinConfidence:   0.4,
		LookbackDays:    90,
		DeltaPeriods:    [3]int{7, 30, 90},
		DefaultSeverity: 0.5,
	}
}

func (c Config) kind(k model.EventKind) (severity float64, dims map[string]float64) {
	kw, ok := c.Kinds[k]
	if !ok {
		return c.DefaultSeverity, nil
	}
	return kw.Severity, kw.Dimensions
}
