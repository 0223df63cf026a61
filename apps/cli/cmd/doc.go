// Package cmd implements the courier CLI commands using Cobra.
//
// Available commands:
//   - send: Execute a single request from a collection
//   - run: Execute every request in a collection
//   - history: Show recently sent requests
//   - version: Show courier version information
//
// Flags have COURIER_* environment variable fallbacks so CI setups can
// configure behavior without repeating flags.
package cmd
