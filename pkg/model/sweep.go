package model

// SweepConfig is the sweep definition uploaded to WandB. The backend accepts
// it as a YAML document.
type SweepConfig struct {
	Name       string                    `yaml:"name" json:"name"`
	Method     string                    `yaml:"method" json:"method"`
	Metric     SweepMetric               `yaml:"metric" json:"metric"`
	Parameters map[string]SweepParameter `yaml:"parameters" json:"parameters"`
}

type SweepMetric struct {
	Name string `yaml:"name" json:"name"`
	Goal string `yaml:"goal" json:"goal"`
}

type SweepParameter struct {
	Min          float64 `yaml:"min" json:"min"`
	Max          float64 `yaml:"max" json:"max"`
	Distribution string  `yaml:"distribution" json:"distribution"`
}
