// Command foundry is the single binary for the knowledge pipeline: it hosts
// the CLI, the supervised stage services, and the query API.
package main
