// Package orchestrator wires definition loading, form-tree derivation, the
// validator, and reference extraction behind a single Derive call, so the CLI
// and the preview server share one code path.
package orchestrator
