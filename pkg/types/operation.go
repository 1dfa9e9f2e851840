package types

// OperationType defines the type of file operation produced by the renderer.
type OperationType string

const (
	// OperationCreate writes rendered content to a new file
	OperationCreate OperationType = "create"

	// OperationCopy copies a file verbatim from the staged template
	OperationCopy OperationType = "copy"
)

// FileOperation is a single planned write against the output directory.
// Ordering within a plan reflects template tree traversal order; operations
// are otherwise independent of each other.
type FileOperation struct {
	// Type is the operation kind
	Type OperationType `json:"type"`

	// Target is the destination path under the output directory
	Target string `json:"target"`

	// Content is the rendered file content (create operations)
	Content string `json:"content,omitempty"`

	// Source is the staged file to copy from (copy operations)
	Source string `json:"source,omitempty"`
}
