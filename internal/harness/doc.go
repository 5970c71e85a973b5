// Package harness runs conformance scenarios against a fully wired app
// shell: the production handler chain over the bundled assets, a sqlite
// store and a scripted remote API.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: login_then_browse
//	description: "A login registers the device and fills the tables"
//	api:
//	  login: { status: OK, device: dev-1 }
//	  refresh: { status: OK, exams: [{ title: Algebra }] }
//	flow:
//	  - request: POST /login
//	    form: { username: alice, password: secret }
//	    expect: { status: 303, location: / }
//	  - request: GET /exams
//	    expect:
//	      status: 200
//	      contains: ["<td>Algebra</td>"]
//	assertions:
//	  - type: table_count
//	    table: exams
//	    count: 1
//	  - type: remote_calls
//	    actions: [login, refresh]
//
// # Assertion Types
//
//   - table_count: number of records in a table
//   - record: subset match of one record, looked up by key
//   - remote_calls: exact sequence of remote actions
//   - remote_form: subset match of the form of the last call of an action
//   - device: the stored device identity ("" after a logout)
//
// # Deterministic Testing
//
// Every request gets the scenario's fixed request ID and each scenario
// runs against a fresh database, so traces are stable for golden file
// comparison.
package harness
