// Package cache implements the versioned static-resource cache of the app
// shell and the resolver that serves resources from it.
//
// Entries are addressed by (version, path) and are immutable per version.
// Install populates a new version from the manifest and prunes the others,
// so a version bump supersedes the previous cache wholesale.
package cache
