// Package handlers holds the production handler chain of the app shell.
//
// Each handler claims requests through its own gorilla/mux routes and
// renders through the controller, so pages share its localization and
// error translation.
package handlers
