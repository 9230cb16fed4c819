package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// maxBundleEntryBytes caps one decompressed archive member.
const maxBundleEntryBytes = 1 << 30

// bundleMembers are the extensions kept from a dataset archive: shapefile
// sidecars plus the tabular formats the loaders read.
var bundleMembers = map[string]bool{
	".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true,
	".csv": true, ".xlsx": true, ".json": true,
}

// Bundle is what ExtractBundle kept from an archive.
type Bundle struct {
	Files     []string // every extracted path
	Shapefile string   // the .shp member, if any
	Tables    []string // .csv, .xlsx and .json members
}

// Primary returns the file a loader should read: the shapefile when the
// bundle has one, else its only table. It is empty when the choice is
// ambiguous.
func (b *Bundle) Primary() string {
	if b.Shapefile != "" {
		return b.Shapefile
	}
	if len(b.Tables) == 1 {
		return b.Tables[0]
	}
	return ""
}

// ExtractBundle writes the dataset members of a zip archive flat into
// destDir. Folders inside the archive are dropped, so a shapefile keeps its
// .shx/.dbf sidecars next to it. Other members (readme files, __MACOSX
// metadata) are skipped.
func ExtractBundle(zipPath, destDir string) (*Bundle, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	b := &Bundle{}
	seen := make(map[string]string)
	for _, f := range r.File {
		name, ok, err := bundleName(f)
		if err != nil {
			return b, err
		}
		if !ok {
			continue
		}
		if prev, dup := seen[name]; dup {
			return b, eris.Errorf("zip: %q and %q both extract to %s", prev, f.Name, name)
		}
		seen[name] = f.Name

		dest := filepath.Join(destDir, name)
		if err := writeMember(f, dest); err != nil {
			return b, err
		}
		b.Files = append(b.Files, dest)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".shp":
			if b.Shapefile != "" {
				return b, eris.Errorf("zip: more than one shapefile in %s", zipPath)
			}
			b.Shapefile = dest
		case ".csv", ".xlsx", ".json":
			b.Tables = append(b.Tables, dest)
		}
	}
	return b, nil
}

// bundleName returns the flat file name for a member, or ok=false when the
// member is not part of the dataset.
func bundleName(f *zip.File) (string, bool, error) {
	clean := path.Clean(strings.ReplaceAll(f.Name, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, eris.Errorf("zip: illegal path %q", f.Name)
	}
	if f.FileInfo().IsDir() || strings.HasPrefix(clean, "__MACOSX/") {
		return "", false, nil
	}
	base := path.Base(clean)
	if strings.HasPrefix(base, ".") || !bundleMembers[strings.ToLower(path.Ext(base))] {
		return "", false, nil
	}
	return base, true, nil
}

func writeMember(f *zip.File, dest string) error {
	if f.UncompressedSize64 > maxBundleEntryBytes {
		return eris.Errorf("zip: %s is larger than %d bytes", f.Name, maxBundleEntryBytes)
	}
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "zip: create directory")
	}
	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dest)
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxBundleEntryBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return eris.Wrapf(err, "zip: write %s", dest)
	}
	if n > maxBundleEntryBytes {
		return eris.Errorf("zip: %s is larger than %d bytes", f.Name, maxBundleEntryBytes)
	}
	return nil
}
