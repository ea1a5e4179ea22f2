// Package main hosts the Platter CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the interactive rip workflow: prompts
// for show, season, and duration thresholds, a plan table with confirmation
// before any encode starts, and a dry-run plan subcommand. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
