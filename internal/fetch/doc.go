// Package fetch retrieves crawl targets over HTTP and extracts their
// readable text for downstream structuring.
package fetch
