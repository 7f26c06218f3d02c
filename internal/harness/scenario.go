package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lapor/internal/reconcile"
	"github.com/roach88/lapor/internal/report"
)

// Scenario defines an end-to-end report-store scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Online is the connectivity when the scenario starts.
	Online bool `yaml:"online"`

	// CreatedBy is the default attribution tag for submissions.
	CreatedBy string `yaml:"created_by,omitempty"`

	// Filter narrows the live query the trace records.
	Filter report.Filter `yaml:"filter,omitempty"`

	// Steps run in order; each runs to quiescence before the next.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one of Submit, Connectivity or Sync
// is set.
type Step struct {
	Submit *SubmitStep `yaml:"submit,omitempty"`

	// Connectivity is "online" or "offline".
	Connectivity string `yaml:"connectivity,omitempty"`

	// Sync triggers a pass with the given reason, e.g. `sync: manual`.
	Sync string `yaml:"sync,omitempty"`

	// Expect validates the outcome of a submit step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SubmitStep hands a payload to the gateway.
type SubmitStep struct {
	Payload   map[string]any `yaml:"payload"`
	CreatedBy string         `yaml:"created_by,omitempty"`

	// At pins reported_at (RFC 3339). Without it the stepping clock decides.
	At string `yaml:"at,omitempty"`
}

// ExpectClause specifies the expected outcome of a submit step.
type ExpectClause struct {
	// Status is the expected initial status.
	Status string `yaml:"status,omitempty"`

	// Rejected expects the gateway to refuse the payload.
	Rejected bool `yaml:"rejected,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	ID     string   `yaml:"id,omitempty"`
	Status string   `yaml:"status,omitempty"`
	Count  *int     `yaml:"count,omitempty"`
	IDs    []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	// AssertFinalStatus checks the stored status of one report.
	AssertFinalStatus = "final_status"
	// AssertStatusCount checks how many reports have a status.
	AssertStatusCount = "status_count"
	// AssertOrder checks the final newest-first order of the whole store.
	AssertOrder = "order"
	// AssertLastDelivery checks the IDs of the last live-query delivery.
	AssertLastDelivery = "last_delivery"
	// AssertDeliveryCount checks the number of live-query deliveries.
	AssertDeliveryCount = "delivery_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	set := 0
	if st.Submit != nil {
		set++
	}
	if st.Connectivity != "" {
		set++
	}
	if st.Sync != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of submit, connectivity, sync is required", index)
	}

	if st.Expect != nil && st.Submit == nil {
		return fmt.Errorf("steps[%d]: expect is only valid on submit", index)
	}

	switch {
	case st.Submit != nil:
		if st.Submit.Payload == nil {
			return fmt.Errorf("steps[%d].submit: payload is required", index)
		}
		if st.Submit.At != "" {
			if _, err := time.Parse(time.RFC3339Nano, st.Submit.At); err != nil {
				return fmt.Errorf("steps[%d].submit: invalid at: %w", index, err)
			}
		}
		if st.Expect != nil && st.Expect.Status != "" {
			if _, err := report.ParseStatus(st.Expect.Status); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", index, err)
			}
		}
	case st.Connectivity != "":
		if st.Connectivity != "online" && st.Connectivity != "offline" {
			return fmt.Errorf("steps[%d]: connectivity must be online or offline, got %q", index, st.Connectivity)
		}
	case st.Sync != "":
		switch reconcile.Reason(st.Sync) {
		case reconcile.ReasonManual, reconcile.ReasonSubmit, reconcile.ReasonConnectivityRestored:
		default:
			return fmt.Errorf("steps[%d]: unknown sync reason %q", index, st.Sync)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalStatus:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_status", index)
		}
		if _, err := report.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertStatusCount:
		if _, err := report.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for status_count", index)
		}
	case AssertOrder, AssertLastDelivery:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids list is required for %s", index, a.Type)
		}
	case AssertDeliveryCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for delivery_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
