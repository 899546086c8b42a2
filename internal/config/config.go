package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gt=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr"`
}

// Duplicate identifier policies for the patient table.
const (
	DuplicateKeep   = "keep"
	DuplicateReject = "reject"
)

// PipelineConfig is the configuration surface consumed by the data
// processing core. Everything here is a caller-overridable default,
// not a hard-coded constant: column synonyms, classification keyword
// lists, age bucket edges, and the duplicate identifier policy.
type PipelineConfig struct {
	// ColumnSynonyms maps case-folded source header names onto
	// canonical field names. Unmapped headers are kept verbatim as
	// extension columns.
	ColumnSynonyms map[string]string `yaml:"column_synonyms" envconfig:"COLUMN_SYNONYMS"`

	// PatientKeywords and DiagnosisKeywords drive the sheet role
	// scoring heuristic.
	PatientKeywords   []string `yaml:"patient_keywords" envconfig:"PATIENT_KEYWORDS" validate:"min=1"`
	DiagnosisKeywords []string `yaml:"diagnosis_keywords" envconfig:"DIAGNOSIS_KEYWORDS" validate:"min=1"`

	// AgeBucketEdges are the inclusive upper edges of the age
	// distribution bins; a final open-ended bin is added above the
	// last edge. Must be strictly ascending.
	AgeBucketEdges []int `yaml:"age_bucket_edges" envconfig:"AGE_BUCKET_EDGES" validate:"min=1"`

	// AgeMax is the upper bound of plausible ages; values outside
	// [0, AgeMax] are coerced to null with a warning.
	AgeMax int `yaml:"age_max" envconfig:"AGE_MAX" validate:"gt=0"`

	// DateFormats is the ordered list of layouts tried when parsing
	// date cells; the first successful parse wins.
	DateFormats []string `yaml:"date_formats" envconfig:"DATE_FORMATS" validate:"min=1"`

	// GenderSynonyms maps upper-cased source values (including numeric
	// codes) onto canonical gender labels. Unmapped values are kept
	// upper-cased as-is.
	GenderSynonyms map[string]string `yaml:"gender_synonyms" envconfig:"GENDER_SYNONYMS"`

	// DuplicatePolicy decides whether duplicate registry ids in the
	// patient table are kept with a warning or rejected as an
	// integrity error.
	DuplicatePolicy string `yaml:"duplicate_policy" envconfig:"DUPLICATE_POLICY" validate:"oneof=keep reject"`

	// TopDiagnoses is how many diagnosis frequencies the summary keeps.
	TopDiagnoses int `yaml:"top_diagnoses" envconfig:"TOP_DIAGNOSES" validate:"gt=0"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  32 << 20, // 32MB
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Pipeline: DefaultPipeline(),
	}
}

// DefaultPipeline returns the default pipeline configuration for
// library and test use without the server layers.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		ColumnSynonyms: map[string]string{
			"registry id":         "registry_id",
			"registry_id":         "registry_id",
			"regid":               "registry_id",
			"reg id":              "registry_id",
			"patient id":          "registry_id",
			"patient_id":          "registry_id",
			"patientid":           "registry_id",
			"patient registry id": "registry_id",
			"id":                  "registry_id",
			"age":                 "age",
			"patient age":         "age",
			"gender":              "gender",
			"sex":                 "gender",
			"admission date":      "admission_date",
			"admission_date":      "admission_date",
			"date of admission":   "admission_date",
			"admitted":            "admission_date",
			"discharge date":      "discharge_date",
			"discharge_date":      "discharge_date",
			"date of discharge":   "discharge_date",
			"diagnosis":           "diagnosis",
			"diagnosis code":      "diagnosis",
			"diagnosis_code":      "diagnosis",
			"diag code":           "diagnosis",
			"diag_code":           "diagnosis",
			"condition":           "diagnosis",
			"diagnosis date":      "diagnosis_date",
			"diagnosis_date":      "diagnosis_date",
			"visit date":          "diagnosis_date",
			"visit_date":          "diagnosis_date",
			"date":                "diagnosis_date",
			"department":          "department",
			"dept":                "department",
			"ward":                "department",
		},
		PatientKeywords:   []string{"patient", "demographic", "details"},
		DiagnosisKeywords: []string{"diagnosis", "condition", "clinical"},
		AgeBucketEdges:    []int{18, 35, 50, 65},
		AgeMax:            120,
		DateFormats: []string{
			"2006-01-02",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"01/02/2006",
			"2006/01/02",
			"02-01-2006",
			"01-02-2006 15:04",
			"Jan 2, 2006",
			"2 Jan 2006",
		},
		GenderSynonyms: map[string]string{
			"1": "MALE", "1.0": "MALE", "M": "MALE", "MALE": "MALE", "MAN": "MALE",
			"2": "FEMALE", "2.0": "FEMALE", "F": "FEMALE", "FEMALE": "FEMALE", "WOMAN": "FEMALE",
			"3": "TRANSGENDER", "3.0": "TRANSGENDER", "T": "TRANSGENDER", "TRANS": "TRANSGENDER", "TRANSGENDER": "TRANSGENDER",
			"O": "OTHER", "OTHER": "OTHER", "OTHERS": "OTHER",
		},
		DuplicatePolicy: DuplicateKeep,
		TopDiagnoses:    10,
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, in that order of precedence (env wins).
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("WARDPULSE", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks structural constraints of the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

// Validate checks the pipeline configuration invariants that the
// struct tags cannot express.
func (p *PipelineConfig) Validate() error {
	if !sort.IntsAreSorted(p.AgeBucketEdges) {
		return fmt.Errorf("age bucket edges must be ascending: %v", p.AgeBucketEdges)
	}
	for i := 1; i < len(p.AgeBucketEdges); i++ {
		if p.AgeBucketEdges[i] == p.AgeBucketEdges[i-1] {
			return fmt.Errorf("age bucket edges must be strictly ascending: %v", p.AgeBucketEdges)
		}
	}
	if len(p.ColumnSynonyms) == 0 {
		return fmt.Errorf("column synonym table must not be empty")
	}
	return nil
}
