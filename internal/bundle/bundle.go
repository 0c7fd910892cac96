// Package bundle reads document bundles: the JSON envelope carrying one
// document's metadata, capture history, and filtered capture nodes.
package bundle

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qc-reconcile/internal/reconcile"
)

// Ext is the file extension of bundle files in a batch directory.
const Ext = ".json"

// Decode reads one bundle from r. Unknown fields are ignored.
func Decode(r io.Reader) (reconcile.Input, error) {
	var in reconcile.Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return reconcile.Input{}, eris.Wrap(err, "bundle: decode")
	}
	if in.Document.ID == "" {
		return reconcile.Input{}, eris.New("bundle: document._id is required")
	}
	return in, nil
}

// DecodeBytes decodes a bundle held in memory.
func DecodeBytes(data []byte) (reconcile.Input, error) {
	return Decode(bytes.NewReader(data))
}

// Load reads and decodes the bundle file at path.
func Load(path string) (reconcile.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return reconcile.Input{}, eris.Wrapf(err, "bundle: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	in, err := Decode(f)
	if err != nil {
		return reconcile.Input{}, eris.Wrapf(err, "bundle: load %s", path)
	}
	return in, nil
}

// List returns the bundle files directly under dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "bundle: read dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
