package types

// VariableType is the declared type of a template variable.
type VariableType string

const (
	VariableString  VariableType = "string"
	VariableBoolean VariableType = "boolean"
	VariableNumber  VariableType = "number"
	VariableSelect  VariableType = "select"
)

// TemplateVariable declares a customizable value consumed during rendering.
type TemplateVariable struct {
	// Name identifies the variable in the substitution context
	Name string `json:"name" yaml:"name"`

	// Description is shown to users choosing a value
	Description string `json:"description" yaml:"description"`

	// Type is one of string, boolean, number, select
	Type VariableType `json:"type" yaml:"type"`

	// Required marks variables that must be supplied by the caller
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Default is used when the caller supplies no value
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`

	// Pattern is a regular expression constraint, string type only
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Options is the closed value set for select variables
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// TemplateMetadata is the parsed template manifest. The fetcher produces it
// (reading the manifest from the staged template, defaulting when absent);
// the validator and renderer consume it.
type TemplateMetadata struct {
	Name         string             `json:"name" yaml:"name"`
	Description  string             `json:"description" yaml:"description"`
	Version      string             `json:"version" yaml:"version"`
	Author       string             `json:"author,omitempty" yaml:"author,omitempty"`
	Tags         []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variables    []TemplateVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
	Dependencies []string           `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	NodeVersion  string             `json:"nodeVersion,omitempty" yaml:"nodeVersion,omitempty"`
}

// TemplateInfo pairs the metadata of a fetched template with the staged
// directory it was materialized into.
type TemplateInfo struct {
	Metadata TemplateMetadata `json:"metadata"`
	Path     string           `json:"path"`
}
