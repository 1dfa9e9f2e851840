package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/stencil-dev/stencil/pkg/errors"
	"github.com/stencil-dev/stencil/pkg/types"
)

// URLFetcher downloads and extracts template archives. Supported formats
// are .zip, .tar.gz and .tgz; file:// URLs point at a local archive.
type URLFetcher struct {
	client *http.Client
}

// NewURLFetcher creates a fetcher for archive URL sources.
func NewURLFetcher() *URLFetcher {
	return &URLFetcher{
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Kind returns the source kind this fetcher handles.
func (f *URLFetcher) Kind() types.SourceKind {
	return types.SourceURL
}

// Fetch downloads the archive and extracts it into the staging directory.
// Archives whose entries all share a single top-level directory (the shape
// GitHub produces) are unwrapped so the template root is the staging root.
func (f *URLFetcher) Fetch(ctx context.Context, src types.TemplateSource, stagingDir string) (*types.TemplateInfo, error) {
	archivePath, cleanup, err := f.materialize(ctx, src.Location)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		err = extractZip(archivePath, stagingDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		err = extractTarGz(archivePath, stagingDir)
	default:
		return nil, errors.Newf(errors.ErrFetch, "unsupported archive format: %s", src.Location)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch, "failed to extract %s", src.Location)
	}

	root, err := unwrapSingleRoot(stagingDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFetch, "failed to inspect extracted archive")
	}

	return &types.TemplateInfo{
		Path:     root,
		Metadata: loadMetadata(root),
	}, nil
}

// materialize returns a local path to the archive, downloading when needed.
func (f *URLFetcher) materialize(ctx context.Context, location string) (string, func(), error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.ErrFetch, "malformed template URL %s", location)
	}

	if u.Scheme == "file" {
		return u.Path, func() {}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.ErrFetch, "failed to build request for %s", location)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.ErrFetch, "failed to download %s", location)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", nil, errors.Newf(errors.ErrFetch,
			"unexpected status %d downloading %s", resp.StatusCode, location)
	}

	tmp, err := os.CreateTemp("", "stencil-archive-*"+archiveSuffix(u.Path))
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrFetch, "failed to create archive temp file")
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, errors.Wrapf(err, errors.ErrFetch, "failed to download %s", location)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, errors.Wrap(err, errors.ErrFetch, "failed to finish archive download")
	}

	path := tmp.Name()
	return path, func() { _ = os.Remove(path) }, nil
}

func archiveSuffix(path string) string {
	for _, suffix := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(path, suffix) {
			return suffix
		}
	}
	return ""
}

func extractTarGz(archivePath, dst string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// SecureJoin keeps hostile archive entries inside the staging root
		target, err := securejoin.SecureJoin(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, dst string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, entry := range r.File {
		target, err := securejoin.SecureJoin(dst, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		in, err := entry.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, entry.Mode().Perm())
		if err != nil {
			_ = in.Close()
			return err
		}
		_, copyErr := io.Copy(out, in)
		_ = in.Close()
		closeErr := out.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// unwrapSingleRoot returns the template root within dir. Archives produced
// by forges wrap content in a single top-level directory; in that case the
// wrapped directory is the root.
func unwrapSingleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

var _ Fetcher = (*URLFetcher)(nil)
