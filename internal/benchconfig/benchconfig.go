// Package benchconfig manages the operator-editable list of benchmark run
// configurations and the handoff file consumed by the lifecycle script.
package benchconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// RunConfig is a single benchmark configuration. Field names on the wire match
// the JSON the lifecycle script consumes.
type RunConfig struct {
	Name           string  `json:"name"`
	NumWorkers     int     `json:"num_workers"`
	MemPerWorker   int     `json:"mem_per_worker"`
	CoresPerWorker int     `json:"cores_per_worker"`
	DatasetScale   float64 `json:"dataset_scale"`
	LogDir         string  `json:"log_dir"`
	Remark         string  `json:"remark,omitempty"`
}

// requiredFields in declaration order, used for error messages.
var requiredFields = []string{"name", "num_workers", "mem_per_worker", "cores_per_worker", "dataset_scale", "log_dir"}

// DefaultConfigs returns the baseline single-worker configuration shown when
// no config file exists yet.
func DefaultConfigs() []RunConfig {
	return []RunConfig{
		{
			Name:           "BASE",
			NumWorkers:     1,
			MemPerWorker:   120,
			CoresPerWorker: 4,
			DatasetScale:   1.0,
			LogDir:         "./logs/project-test",
			Remark:         "Baseline configuration with 1 worker",
		},
	}
}

// Load returns the canonical JSON text of the saved configurations. A missing
// file yields the default array; a read or parse failure yields a one-element
// array carrying an error descriptor. Load never returns an error to the
// caller — the console always has something to display.
func Load(path string) string {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return mustIndent(DefaultConfigs())
	}
	if err != nil {
		return errDescriptor("error loading configurations: " + err.Error())
	}

	var configs []map[string]any
	if err := json.Unmarshal(data, &configs); err != nil {
		return errDescriptor("error loading configurations: " + err.Error())
	}
	return mustIndent(configs)
}

// Save persists configs to the editable config file.
func Save(path string, configs []RunConfig) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding configurations: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing configurations: %w", err)
	}
	return nil
}

// Validate parses jsonText and checks it is a JSON array whose elements carry
// every required field with sane bounds. The error names the offending element
// and field so the console can point the operator at it.
func Validate(jsonText string) ([]RunConfig, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		// Distinguish "not an array" from plain bad JSON for a clearer message.
		var probe any
		if json.Unmarshal([]byte(jsonText), &probe) == nil {
			return nil, fmt.Errorf("%w: configuration must be a JSON array", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalid, err)
	}

	for i, entry := range raw {
		for _, field := range requiredFields {
			if _, ok := entry[field]; !ok {
				return nil, fmt.Errorf("%w: configuration %d is missing required field: %s", ErrInvalid, i, field)
			}
		}
	}

	var configs []RunConfig
	if err := json.Unmarshal([]byte(jsonText), &configs); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalid, err)
	}

	for i := range configs {
		if err := checkEntry(i, configs[i]); err != nil {
			return nil, err
		}
	}

	return configs, nil
}

// ValidateConfigs checks an already-decoded array before a batch run:
// non-empty, with every entry complete and within bounds.
func ValidateConfigs(configs []RunConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("%w: no configurations to run", ErrInvalid)
	}
	for i := range configs {
		if err := checkEntry(i, configs[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkEntry(i int, c RunConfig) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: configuration %d: name must not be empty", ErrInvalid, i)
	case c.NumWorkers <= 0:
		return fmt.Errorf("%w: configuration %d: num_workers must be > 0", ErrInvalid, i)
	case c.MemPerWorker <= 0:
		return fmt.Errorf("%w: configuration %d: mem_per_worker must be > 0", ErrInvalid, i)
	case c.CoresPerWorker <= 0:
		return fmt.Errorf("%w: configuration %d: cores_per_worker must be > 0", ErrInvalid, i)
	case c.DatasetScale <= 0 || c.DatasetScale > 1:
		return fmt.Errorf("%w: configuration %d: dataset_scale must be in (0, 1]", ErrInvalid, i)
	case c.LogDir == "":
		return fmt.Errorf("%w: configuration %d: log_dir must not be empty", ErrInvalid, i)
	}
	return nil
}

// ValidateResult is the console-facing outcome of ValidateAndSave.
type ValidateResult struct {
	OK      bool
	Status  string
	Configs []RunConfig
	// JSON is the canonicalized text on success, the operator's original
	// text on failure so nothing they typed is lost.
	JSON string
}

// ValidateAndSave validates jsonText and, on success, writes the canonical
// JSON to the handoff path for the lifecycle script. On failure nothing is
// written and the status describes the problem. Errors never escape as
// errors; the result carries the outcome either way.
func ValidateAndSave(jsonText, handoffPath string) ValidateResult {
	configs, err := Validate(jsonText)
	if err != nil {
		return ValidateResult{OK: false, Status: err.Error(), JSON: jsonText}
	}

	canonical := mustIndent(configs)
	if err := os.WriteFile(handoffPath, []byte(canonical), 0644); err != nil {
		return ValidateResult{OK: false, Status: "saving handoff file: " + err.Error(), JSON: jsonText}
	}

	return ValidateResult{
		OK:      true,
		Status:  fmt.Sprintf("configuration validated: %d configuration(s) ready to run", len(configs)),
		Configs: configs,
		JSON:    canonical,
	}
}

// WriteHandoff serializes configs to the handoff file the lifecycle script
// reads. Last writer wins; access is single-operator by construction.
func WriteHandoff(path string, configs []RunConfig) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding handoff: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing handoff: %w", err)
	}
	return nil
}

func errDescriptor(msg string) string {
	return mustIndent([]map[string]string{{"error": msg}})
}

func mustIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
