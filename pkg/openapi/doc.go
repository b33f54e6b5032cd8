// Package openapi extracts the pipeline trigger form schema from a pipeline's
// OpenAPI document. The kin-openapi backed parser lives under
// internal/openapi so consumers only see schema.Node values.
package openapi
