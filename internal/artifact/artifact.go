// Package artifact builds the zip archives a scenario's environment serves.
//
// Each Spec names an archive and the fixture files it contains. All archives of a
// suite are built concurrently before the compose topology starts, because the
// containers mount the artifacts directory and expect the archives to be present.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"scenarioctl/pkg/logging"
)

// DefaultOutputDir is the artifacts directory, relative to the fixture directory.
const DefaultOutputDir = "artifacts"

// Spec describes one archive: its file name and the fixture files it contains,
// relative to the source directory, in archive order.
type Spec struct {
	ArchiveName string   `yaml:"archive"`
	SourceFiles []string `yaml:"files"`
}

// PackagingError reports a failed archive build. It wraps the underlying cause,
// so a missing source file satisfies errors.Is(err, fs.ErrNotExist).
type PackagingError struct {
	Archive string
	File    string
	Err     error
}

func (e *PackagingError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("packaging %s: %s: %v", e.Archive, e.File, e.Err)
	}
	return fmt.Sprintf("packaging %s: %v", e.Archive, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Packager builds archives from a fixture source directory.
type Packager struct {
	// OutputDir is where archives are written. Relative paths are resolved
	// against the source directory.
	OutputDir string
}

// NewPackager creates a packager writing into outputDir.
func NewPackager(outputDir string) *Packager {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return &Packager{OutputDir: outputDir}
}

// Validate checks specs for empty names, empty file lists, duplicate archive
// names and source files outside the source directory.
func Validate(specs []Spec) error {
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.ArchiveName == "" {
			return fmt.Errorf("artifacts[%d]: archive name is required", i)
		}
		if filepath.Base(spec.ArchiveName) != spec.ArchiveName {
			return fmt.Errorf("artifacts[%d]: archive name %q must not contain a path", i, spec.ArchiveName)
		}
		if seen[spec.ArchiveName] {
			return fmt.Errorf("artifacts[%d]: duplicate archive name %q", i, spec.ArchiveName)
		}
		seen[spec.ArchiveName] = true
		if len(spec.SourceFiles) == 0 {
			return fmt.Errorf("artifacts[%d]: %s lists no files", i, spec.ArchiveName)
		}
		for _, name := range spec.SourceFiles {
			if !filepath.IsLocal(name) {
				return fmt.Errorf("artifacts[%d]: %s: file %q must be a relative path inside the source directory", i, spec.ArchiveName, name)
			}
		}
	}
	return nil
}

// Build writes one archive per spec and returns the archive paths in spec order.
// Archives are built concurrently; on the first failure the remaining builds are
// cancelled and any partially written archive is removed.
func (p *Packager) Build(ctx context.Context, sourceDir string, specs []Spec) ([]string, error) {
	if err := Validate(specs); err != nil {
		return nil, &PackagingError{Archive: "artifacts", Err: err}
	}

	outputDir := p.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(sourceDir, outputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &PackagingError{Archive: outputDir, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	paths := make([]string, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		target := filepath.Join(outputDir, spec.ArchiveName)
		paths[i] = target
		g.Go(func() error {
			return buildArchive(gctx, sourceDir, target, spec)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Info("Artifact", "Packaged %d archive(s) into %s", len(specs), outputDir)
	return paths, nil
}

func buildArchive(ctx context.Context, sourceDir, target string, spec Spec) (err error) {
	// Missing inputs fail before anything is written.
	for _, name := range spec.SourceFiles {
		if _, statErr := os.Stat(filepath.Join(sourceDir, name)); statErr != nil {
			return &PackagingError{Archive: spec.ArchiveName, File: name, Err: statErr}
		}
	}

	out, err := os.Create(target)
	if err != nil {
		return &PackagingError{Archive: spec.ArchiveName, Err: err}
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = &PackagingError{Archive: spec.ArchiveName, Err: closeErr}
		}
		if err != nil {
			os.Remove(target)
		}
	}()

	zw := zip.NewWriter(out)
	for _, name := range spec.SourceFiles {
		if ctxErr := ctx.Err(); ctxErr != nil {
			zw.Close()
			return &PackagingError{Archive: spec.ArchiveName, Err: ctxErr}
		}
		if addErr := addFile(zw, sourceDir, name); addErr != nil {
			zw.Close()
			return &PackagingError{Archive: spec.ArchiveName, File: name, Err: addErr}
		}
	}
	if err := zw.Close(); err != nil {
		return &PackagingError{Archive: spec.ArchiveName, Err: err}
	}

	logging.Debug("Artifact", "Wrote %s with %d file(s)", target, len(spec.SourceFiles))
	return nil
}

// addFile copies one source file into the archive, keeping its mode bits so
// scripts stay executable once extracted.
func addFile(zw *zip.Writer, sourceDir, name string) error {
	path := filepath.Join(sourceDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(filepath.Clean(name))
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return nil
}

// IsMissingSource reports whether err is a packaging failure caused by a missing source file.
func IsMissingSource(err error) bool {
	var pkgErr *PackagingError
	return errors.As(err, &pkgErr) && errors.Is(err, fs.ErrNotExist)
}
