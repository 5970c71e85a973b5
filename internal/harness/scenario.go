package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: canned remote responses, a
// request flow with expectations and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Device presets the device identity; empty means not registered.
	Device string `yaml:"device,omitempty"`

	// Offline starts the scenario without connectivity.
	Offline bool `yaml:"offline,omitempty"`

	// AcceptLanguage is sent with every request that sets none itself.
	AcceptLanguage string `yaml:"accept_language,omitempty"`

	// API maps a remote action to the JSON object it answers with.
	// Unlisted actions answer with an error status.
	API map[string]map[string]any `yaml:"api,omitempty"`

	// Setup records are stored before the flow runs.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow is the sequence of requests.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`

	// RequestID is the fixed request ID of every request.
	// If empty, defaults to "test-request".
	RequestID string `yaml:"request_id,omitempty"`
}

// SetupStep stores one record.
type SetupStep struct {
	Table  string         `yaml:"table"`
	Record map[string]any `yaml:"record"`
}

// FlowStep is one request, written "METHOD /path".
type FlowStep struct {
	Request string `yaml:"request"`

	// Form is sent as an urlencoded body.
	Form map[string]string `yaml:"form,omitempty"`

	// Online toggles connectivity before the request.
	Online *bool `yaml:"online,omitempty"`

	AcceptLanguage string `yaml:"accept_language,omitempty"`

	// Expect specifies the expected outcome. If nil, the request only has
	// to dispatch without error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Method and Path split the request line.
func (s FlowStep) Method() string {
	method, _, _ := strings.Cut(s.Request, " ")
	return method
}

func (s FlowStep) Path() string {
	_, path, _ := strings.Cut(s.Request, " ")
	return strings.TrimSpace(path)
}

// ExpectClause specifies the expected response of a request.
type ExpectClause struct {
	Status   int      `yaml:"status,omitempty"`
	Location string   `yaml:"location,omitempty"`
	Contains []string `yaml:"contains,omitempty"`

	// Fault is the fault ID the error page is rendered for.
	Fault string `yaml:"fault,omitempty"`

	// Error expects Dispatch to fail: "unhandled" or "unregistered".
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "table_count": Table holds exactly Count records
	// - "record": record Key of Table matches Expect (subset)
	// - "remote_calls": remote actions were exactly Actions
	// - "remote_form": the last Action call carried Form (subset)
	// - "device": the device identity equals Value
	Type string `yaml:"type"`

	Table   string            `yaml:"table,omitempty"`
	Key     string            `yaml:"key,omitempty"`
	Count   int               `yaml:"count,omitempty"`
	Expect  map[string]any    `yaml:"expect,omitempty"`
	Action  string            `yaml:"action,omitempty"`
	Actions []string          `yaml:"actions,omitempty"`
	Form    map[string]string `yaml:"form,omitempty"`
	Value   string            `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTableCount  = "table_count"
	AssertRecord      = "record"
	AssertRemoteCalls = "remote_calls"
	AssertRemoteForm  = "remote_form"
	AssertDevice      = "device"
)

// Expected dispatch errors.
const (
	ErrorUnhandled    = "unhandled"
	ErrorUnregistered = "unregistered"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Table == "" {
			return fmt.Errorf("setup[%d]: table is required", i)
		}
		if step.Record == nil {
			return fmt.Errorf("setup[%d]: record is required", i)
		}
	}

	for i, step := range s.Flow {
		switch step.Method() {
		case http.MethodGet, http.MethodPost:
		default:
			return fmt.Errorf("flow[%d]: request %q must be \"GET /path\" or \"POST /path\"", i, step.Request)
		}
		if !strings.HasPrefix(step.Path(), "/") {
			return fmt.Errorf("flow[%d]: request path must start with /", i)
		}
		if e := step.Expect; e != nil {
			switch e.Error {
			case "", ErrorUnhandled, ErrorUnregistered:
			default:
				return fmt.Errorf("flow[%d].expect: unknown error %q", i, e.Error)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTableCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for table_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for table_count", index)
		}
	case AssertRecord:
		if a.Table == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: table and key are required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertRemoteCalls:
		// An empty list asserts that nothing was called.
	case AssertRemoteForm:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for remote_form", index)
		}
	case AssertDevice:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
