// Package source turns free-form template identifier strings into typed
// TemplateSource descriptors and canonicalizes them. Resolution is pure and
// total: any input string produces a best-effort descriptor, and rejection
// of obviously invalid identifiers is the pipeline's pre-flight concern.
package source

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/stencil-dev/stencil/pkg/registry"
	"github.com/stencil-dev/stencil/pkg/types"
)

// githubPrefix marks identifiers that explicitly request a GitHub source.
const githubPrefix = "github:"

// ownerRepoRe matches GitHub owner/repo shorthand, including scoped-package
// style owners (@scope) and home-relative looking owners (~).
var ownerRepoRe = regexp.MustCompile(`^(~|@?[A-Za-z0-9][A-Za-z0-9_.-]*)/[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// builtins is the registry of template names bundled with the binary.
var builtins = registry.New[string]()

func init() {
	registry.MustRegister(builtins, "default", "Minimal starter project")
	registry.MustRegister(builtins, "library", "Reusable library package")
	registry.MustRegister(builtins, "cli", "Command-line application")
	registry.MustRegister(builtins, "react", "React web application")
	registry.MustRegister(builtins, "node", "Node.js service")
}

// BuiltinTemplates returns the registered built-in template names.
// It never fails; an unavailable bundle simply yields an empty list.
func BuiltinTemplates() []string {
	return builtins.List()
}

// IsBuiltin reports whether name is a registered built-in template.
func IsBuiltin(name string) bool {
	return builtins.Has(name)
}

// BuiltinDescription returns the description of a built-in template, or an
// empty string for unknown names.
func BuiltinDescription(name string) string {
	desc, err := builtins.Get(name)
	if err != nil {
		return ""
	}
	return desc
}

// Resolve parses an identifier into a TemplateSource. It performs no I/O and
// is deterministic: equal identifiers always yield equal descriptors.
//
// Precedence, first match wins:
//  1. explicit URL scheme (https, http, file)
//  2. "github:" prefix
//  3. "." (current directory builtin)
//  4. registered built-in name
//  5. GitHub owner/repo shorthand, with optional subdir and #ref
//  6. filesystem path
//
// The empty string resolves to an empty builtin descriptor.
func Resolve(identifier string) types.TemplateSource {
	if identifier == "" {
		return types.TemplateSource{Kind: types.SourceBuiltin, Location: ""}
	}

	if hasURLScheme(identifier) {
		return types.TemplateSource{Kind: types.SourceURL, Location: identifier}
	}

	if strings.HasPrefix(identifier, githubPrefix) {
		return resolveGitHub(strings.TrimPrefix(identifier, githubPrefix))
	}

	if identifier == "." {
		return types.TemplateSource{Kind: types.SourceBuiltin, Location: "."}
	}

	if builtins.Has(identifier) {
		return types.TemplateSource{Kind: types.SourceBuiltin, Location: identifier}
	}

	if src, ok := matchShorthand(identifier); ok {
		return src
	}

	return types.TemplateSource{Kind: types.SourceLocal, Location: identifier}
}

// Normalize canonicalizes a source: local paths become absolute relative to
// the working directory, every other variant passes through unchanged. Refs
// are never defaulted here; choosing a branch is the fetcher's concern.
func Normalize(src types.TemplateSource) types.TemplateSource {
	if src.Kind != types.SourceLocal {
		return src
	}

	abs, err := filepath.Abs(src.Location)
	if err != nil {
		return src
	}

	out := src
	out.Location = abs
	return out
}

// Validate applies lightweight existence and shape checks to a source.
// It may touch the filesystem but never the network.
func Validate(src types.TemplateSource) types.ValidationResult {
	switch src.Kind {
	case types.SourceLocal:
		info, err := os.Stat(src.Location)
		if err != nil || !info.IsDir() {
			return invalid("local template directory does not exist: " + src.Location)
		}
		return types.ValidationResult{Valid: true}

	case types.SourceGitHub:
		if !ownerRepoRe.MatchString(src.Location) {
			return invalid("github source must be in owner/repo form: " + src.Location)
		}
		return types.ValidationResult{Valid: true}

	case types.SourceURL:
		u, err := url.Parse(src.Location)
		if err != nil || u.Scheme == "" || u.Host == "" && u.Scheme != "file" {
			return invalid("malformed template URL: " + src.Location)
		}
		return types.ValidationResult{Valid: true}

	case types.SourceBuiltin:
		if !builtins.Has(src.Location) {
			return invalid("unknown built-in template: " + src.Location)
		}
		return types.ValidationResult{Valid: true}

	default:
		return invalid("unknown source type: " + string(src.Kind))
	}
}

// CacheKey returns a stable identity string for a normalized source, used
// to key the template cache.
func CacheKey(src types.TemplateSource) string {
	n := Normalize(src)
	return strings.Join([]string{string(n.Kind), n.Location, n.Ref, n.Subdir}, "|")
}

func invalid(msg string) types.ValidationResult {
	return types.ValidationResult{Valid: false, Errors: []string{msg}}
}

func hasURLScheme(identifier string) bool {
	for _, scheme := range []string{"https://", "http://", "file://"} {
		if strings.HasPrefix(identifier, scheme) {
			return true
		}
	}
	return false
}

// resolveGitHub parses the remainder of a github:-prefixed identifier.
// A combined fragment like "#branch/sub/dir" is split at its first slash so
// ref and subdir stay independently addressable.
func resolveGitHub(rest string) types.TemplateSource {
	src := types.TemplateSource{Kind: types.SourceGitHub}

	base := rest
	if i := strings.Index(rest, "#"); i >= 0 {
		base = rest[:i]
		fragment := rest[i+1:]
		if j := strings.Index(fragment, "/"); j >= 0 {
			src.Ref = fragment[:j]
			src.Subdir = fragment[j+1:]
		} else {
			src.Ref = fragment
		}
	}

	src.Location, src.Subdir = splitRepoPath(base, src.Subdir)
	return src
}

// matchShorthand recognizes bare owner/repo identifiers with optional extra
// path segments and a #ref suffix.
func matchShorthand(identifier string) (types.TemplateSource, bool) {
	if strings.HasPrefix(identifier, "./") || strings.HasPrefix(identifier, "/") {
		return types.TemplateSource{}, false
	}

	src := types.TemplateSource{Kind: types.SourceGitHub}

	base := identifier
	if i := strings.Index(identifier, "#"); i >= 0 {
		base = identifier[:i]
		src.Ref = identifier[i+1:]
	}

	segments := strings.Split(base, "/")
	if len(segments) < 2 {
		return types.TemplateSource{}, false
	}

	repo := strings.Join(segments[:2], "/")
	if !ownerRepoRe.MatchString(repo) {
		return types.TemplateSource{}, false
	}

	src.Location = repo
	if len(segments) > 2 {
		src.Subdir = strings.Join(segments[2:], "/")
	}
	return src, true
}

// splitRepoPath separates owner/repo from trailing path segments. An already
// known subdir (from the fragment) wins over path segments in the base.
func splitRepoPath(base, knownSubdir string) (string, string) {
	segments := strings.Split(base, "/")
	if len(segments) <= 2 {
		return base, knownSubdir
	}
	repo := strings.Join(segments[:2], "/")
	if knownSubdir != "" {
		return repo, knownSubdir
	}
	return repo, strings.Join(segments[2:], "/")
}
