package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/roach88/appshell/internal/store"
	"github.com/roach88/appshell/internal/testutil"
)

// AssertionContext carries what assertions evaluate against.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	Calls []testutil.APICall
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTableCount:
		return assertTableCount(a, actx)
	case AssertRecord:
		return assertRecord(a, actx)
	case AssertRemoteCalls:
		return assertRemoteCalls(a, actx.Calls)
	case AssertRemoteForm:
		return assertRemoteForm(a, actx.Calls)
	case AssertDevice:
		return assertDevice(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTableCount(a Assertion, actx *AssertionContext) error {
	n, err := actx.Store.Count(actx.Ctx, a.Table)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTableCount,
			Expected: fmt.Sprintf("%d records in %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d records", n),
		}
	}
	return nil
}

// assertRecord checks a record against the expected fields (subset match).
// Values are compared in their text form; dates as RFC 3339 in UTC.
func assertRecord(a Assertion, actx *AssertionContext) error {
	rec, err := actx.Store.Get(actx.Ctx, a.Table, a.Key)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s/%s", a.Table, a.Key),
			Actual:   "not found",
		}
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		want, got := text(a.Expect[k]), text(rec[k])
		if want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s=%q (want %q)", k, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s/%s to match %v", a.Table, a.Key, a.Expect),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func assertRemoteCalls(a Assertion, calls []testutil.APICall) error {
	got := make([]string, len(calls))
	for i, c := range calls {
		got[i] = c.Action
	}
	if !slices.Equal(got, a.Actions) {
		return &AssertionError{
			Type:     AssertRemoteCalls,
			Expected: fmt.Sprintf("%v", a.Actions),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertRemoteForm checks the form of the last call of an action (subset
// match). An empty expected value asserts the field was empty or absent.
func assertRemoteForm(a Assertion, calls []testutil.APICall) error {
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Action != a.Action {
			continue
		}
		for k, want := range a.Form {
			if got := calls[i].Form.Get(k); got != want {
				return &AssertionError{
					Type:     AssertRemoteForm,
					Expected: fmt.Sprintf("%s %s=%q", a.Action, k, want),
					Actual:   fmt.Sprintf("%s=%q", k, got),
				}
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteForm,
		Expected: fmt.Sprintf("a %s call", a.Action),
		Actual:   "not called",
	}
}

func assertDevice(a Assertion, actx *AssertionContext) error {
	device, err := actx.Store.DeviceIdentity(actx.Ctx)
	if err != nil {
		return err
	}
	if device != a.Value {
		return &AssertionError{
			Type:     AssertDevice,
			Expected: fmt.Sprintf("device %q", a.Value),
			Actual:   fmt.Sprintf("device %q", device),
		}
	}
	return nil
}
