package humanloop

import "time"

// Config holds the human-loop knobs and keyword tables. The tables are
// data, loaded from configuration; the defaults below cover common
// English trigger terms.
type Config struct {
	// TTL before a pending request expires
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Interval between expiry sweeps
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// Keyword tables keyed by category name
	Keywords map[string][]string `yaml:"keywords" env:"-"`
	// SQLite file backing the validation queue; empty keeps it in memory
	StorePath string `yaml:"store_path" env:"STORE_PATH"`
}

// DefaultConfig returns the built-in keyword tables and a 1h TTL.
func DefaultConfig() Config {
	return Config{
		TTL:           time.Hour,
		SweepInterval: time.Minute,
		Keywords: map[string][]string{
			string(CategorySafety): {
				"dangerous", "hazard", "toxic", "lethal", "overdose",
				"self-harm", "weapon", "explosive", "poison",
			},
			string(CategoryMedical): {
				"diagnosis", "treatment", "dosage", "prescription",
				"symptom", "therapy", "clinical", "patient", "drug",
			},
			string(CategoryRegulatory): {
				"fda", "compliance", "regulation", "approval", "legal",
				"liability", "patent", "gdpr", "hipaa",
			},
			string(CategoryConfidence): {
				"might", "possibly", "unclear", "uncertain", "unsure",
				"perhaps", "maybe", "not confident", "cannot determine",
			},
			string(CategoryComplexity): {
				"interaction", "contraindication", "multi-factor",
				"edge case", "conflicting", "trade-off", "ambiguous",
			},
		},
	}
}

// table returns the keyword list for a category.
func (c Config) table(cat Category) []string {
	return c.Keywords[string(cat)]
}
