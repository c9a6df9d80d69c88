// Package supervisor keeps the pipeline's stage processes running: it
// launches them, restarts any that die, and shuts them down gracefully with
// a kill escalation.
package supervisor
