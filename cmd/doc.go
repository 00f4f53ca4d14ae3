// Package cmd implements the command-line interface for xopd.
//
// This package provides the following commands:
//   - serve: Start the HTTP service exposing the XOP actions
//   - process: Run one action over a message file
//   - version: Display version information
package cmd
