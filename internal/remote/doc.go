// Package remote is the client of the app's remote API.
//
// Every call is a form-encoded POST to api.php with an action query
// parameter and the device token of this installation. The response is a
// JSON object whose status field is "OK" on success; anything else carries
// an error field that becomes a *RemoteError.
package remote
