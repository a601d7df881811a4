// Package main hosts the repcount CLI.
//
// The Cobra command tree works on recorded pose traces offline: it replays a
// trace through a counting session, teaches a profile from a recorded
// demonstration, and lists the effective exercise profiles. Against a running
// repcounter server it streams traces over the REST API and bridges the MCP
// tools to stdio.
package main
