package types

// SourceKind discriminates the closed set of template source variants.
type SourceKind string

const (
	// SourceGitHub is a GitHub-hosted repository, addressed as owner/repo
	SourceGitHub SourceKind = "github"

	// SourceLocal is a directory on the local filesystem
	SourceLocal SourceKind = "local"

	// SourceURL is a downloadable archive addressed by URL
	SourceURL SourceKind = "url"

	// SourceBuiltin is a template bundled with the binary
	SourceBuiltin SourceKind = "builtin"
)

// TemplateSource is a typed descriptor of where a template lives.
// It is constructed once per pipeline run by the resolver and is
// immutable thereafter.
type TemplateSource struct {
	// Kind is the variant tag
	Kind SourceKind `json:"type"`

	// Location is the variant-specific address: owner/repo for github,
	// a path for local, a URL for url, a registered name for builtin.
	// Non-empty for all variants except the degenerate empty-identifier
	// case, which resolves to a builtin with an empty location.
	Location string `json:"location"`

	// Ref is an optional branch, tag, or commit for github sources
	Ref string `json:"ref,omitempty"`

	// Subdir is an optional subdirectory within a github repository
	Subdir string `json:"subdir,omitempty"`
}
