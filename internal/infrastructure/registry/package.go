package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
)

// ManifestFileName is the manifest's required name inside a package.
const ManifestFileName = "manifest.json"

// maxPackageFileSize bounds a single extracted file. Plugin packages carry
// board scripts and assets, not media libraries.
const maxPackageFileSize = 32 << 20

// OpenPackage reads a plugin package from path, which may be a directory or a
// gzipped tarball, and returns the parsed manifest plus the file payload.
// Package bytes are opaque beyond the manifest.
func OpenPackage(path string) (ports.PluginPackage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ports.PluginPackage{}, fmt.Errorf("failed to open plugin package: %w", err)
	}
	var pkg ports.PluginPackage
	if info.IsDir() {
		pkg, err = openPackageDir(path)
	} else {
		pkg, err = openPackageTarball(path)
	}
	if err != nil {
		return ports.PluginPackage{}, err
	}

	raw, ok := pkg.Files[ManifestFileName]
	if !ok {
		return ports.PluginPackage{}, &domain.BadManifestError{Reason: ManifestFileName + " missing from package"}
	}
	if err := json.Unmarshal(raw, &pkg.Manifest); err != nil {
		return ports.PluginPackage{}, &domain.BadManifestError{Reason: fmt.Sprintf("cannot parse %s: %v", ManifestFileName, err)}
	}
	if err := pkg.Manifest.Validate(); err != nil {
		return ports.PluginPackage{}, err
	}
	if _, ok := pkg.Files[pkg.Manifest.EntryPoint]; !ok {
		return ports.PluginPackage{}, &domain.BadManifestError{
			Reason: fmt.Sprintf("entry point %q not present in package", pkg.Manifest.EntryPoint),
		}
	}
	return pkg, nil
}

func openPackageDir(root string) (ports.PluginPackage, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", rel, err)
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return ports.PluginPackage{}, fmt.Errorf("failed to read plugin package directory: %w", err)
	}
	return ports.PluginPackage{Files: files}, nil
}

func openPackageTarball(path string) (ports.PluginPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.PluginPackage{}, fmt.Errorf("failed to read plugin package: %w", err)
	}
	if !isGzip(data) {
		return ports.PluginPackage{}, fmt.Errorf("plugin package %q is neither a directory nor a tar.gz archive", path)
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return ports.PluginPackage{}, fmt.Errorf("failed to decompress plugin package: %w", err)
	}
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ports.PluginPackage{}, fmt.Errorf("failed to read plugin archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.ToSlash(filepath.Clean(hdr.Name))
		if strings.HasPrefix(name, "../") || filepath.IsAbs(name) {
			return ports.PluginPackage{}, fmt.Errorf("archive entry %q escapes the package root", hdr.Name)
		}
		if hdr.Size > maxPackageFileSize {
			return ports.PluginPackage{}, fmt.Errorf("archive entry %q exceeds size limit", hdr.Name)
		}
		content, err := io.ReadAll(io.LimitReader(tr, maxPackageFileSize))
		if err != nil {
			return ports.PluginPackage{}, fmt.Errorf("failed to extract %q: %w", hdr.Name, err)
		}
		files[name] = content
	}
	return ports.PluginPackage{Files: stripArchivePrefix(files)}, nil
}

// stripArchivePrefix removes a single shared top-level directory from archive
// paths. Archives exported from source hosting wrap everything in
// "<name>-<ref>/"; the manifest is expected at the package root.
func stripArchivePrefix(files map[string][]byte) map[string][]byte {
	if _, ok := files[ManifestFileName]; ok {
		return files
	}
	prefix := ""
	for name := range files {
		idx := strings.Index(name, "/")
		if idx < 0 {
			return files
		}
		top := name[:idx+1]
		if prefix == "" {
			prefix = top
		} else if prefix != top {
			return files
		}
	}
	if prefix == "" {
		return files
	}
	out := make(map[string][]byte, len(files))
	for name, data := range files {
		out[strings.TrimPrefix(name, prefix)] = data
	}
	return out
}

// isGzip checks the two-byte gzip magic number.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
