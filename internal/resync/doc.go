// Package resync mirrors the server's records into the local store.
package resync
