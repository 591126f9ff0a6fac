// Package main hosts the ncmconv CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration and logging once, then hands
// off to internal packages: convert runs a batch in the terminal, gui opens
// the desktop window, doctor prints environment checks, and config show
// prints the effective configuration.
package main
