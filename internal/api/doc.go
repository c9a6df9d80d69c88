// Package api exposes the HTTP query interface over the knowledge store.
package api
