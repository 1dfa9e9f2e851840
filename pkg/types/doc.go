// Package types defines the shared data model for the scaffolding pipeline:
// template sources, template metadata, pipeline configuration, and the file
// operations produced by rendering. It has no dependencies on other stencil
// packages so every layer can consume it without cycles.
package types
