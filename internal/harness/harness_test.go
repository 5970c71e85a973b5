package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "the login page is not a redirect",
		Flow: []FlowStep{{
			Request: "GET /",
			Expect:  &ExpectClause{Status: 303, Contains: []string{"<nav>"}},
		}},
	}

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, `flow[0] GET /: expected status 303, got 200`)
	assert.Contains(t, result.Errors, `flow[0] GET /: body does not contain "<nav>"`)
}

func TestRun_ReportsAssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "assertions",
		Description: "every assertion type fails",
		Device:      "dev-1",
		Setup:       []SetupStep{{Table: "events", Record: map[string]any{"id": "e1", "title": "Sommerfest"}}},
		Flow:        []FlowStep{{Request: "GET /welcome"}},
		Assertions: []Assertion{
			{Type: AssertTableCount, Table: "events", Count: 2},
			{Type: AssertRecord, Table: "events", Key: "e1", Expect: map[string]any{"title": "Herbstfest"}},
			{Type: AssertRecord, Table: "events", Key: "e2", Expect: map[string]any{"title": "x"}},
			{Type: AssertRemoteCalls, Actions: []string{"refresh"}},
			{Type: AssertRemoteForm, Action: "login"},
			{Type: AssertDevice, Value: ""},
		},
	}

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "2 records in events")
	assert.Contains(t, result.Errors[1], `title="Sommerfest" (want "Herbstfest")`)
	assert.Contains(t, result.Errors[2], "not found")
	assert.Contains(t, result.Errors[3], "[refresh]")
	assert.Contains(t, result.Errors[4], "not called")
	assert.Contains(t, result.Errors[5], `device "dev-1"`)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: y\nflow: [{request: GET /}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing flow",
			content: "name: x\ndescription: y\n",
			wantErr: "flow list is required",
		},
		{
			name:    "bad request line",
			content: "name: x\ndescription: y\nflow: [{request: DELETE /exams}]\n",
			wantErr: "flow[0]: request",
		},
		{
			name:    "relative path",
			content: "name: x\ndescription: y\nflow: [{request: GET exams}]\n",
			wantErr: "must start with /",
		},
		{
			name:    "unknown expected error",
			content: "name: x\ndescription: y\nflow: [{request: GET /, expect: {error: boom}}]\n",
			wantErr: `unknown error "boom"`,
		},
		{
			name:    "setup without record",
			content: "name: x\ndescription: y\nsetup: [{table: exams}]\nflow: [{request: GET /}]\n",
			wantErr: "setup[0]: record is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: y\nflow: [{request: GET /}]\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "record without key",
			content: "name: x\ndescription: y\nflow: [{request: GET /}]\nassertions: [{type: record, table: events, expect: {a: b}}]\n",
			wantErr: "table and key are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestFlowStep_RequestLine(t *testing.T) {
	step := FlowStep{Request: "POST /login"}
	assert.Equal(t, "POST", step.Method())
	assert.Equal(t, "/login", step.Path())
}
