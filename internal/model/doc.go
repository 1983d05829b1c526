// Package model defines the domain types and value objects for the
// ctdeploy CLI.
//
// This package contains pure data structures with no external dependencies.
// Deployments are transient representations reconstructed from Docker
// container labels at runtime; ctdeploy keeps no state file of its own.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
