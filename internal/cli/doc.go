// Package cli implements dbctl, an operator tool that connects with the
// server's configuration to probe health or run ad hoc SurrealQL.
package cli
