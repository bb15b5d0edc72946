package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Files lists the journal files for prefix under dir in write order. Hour stamps sort
// lexically, so name order is time order.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadAll decodes every line of every journal file for prefix under dir.
func ReadAll[T any](dir, prefix string) ([]T, error) {
	paths, err := Files(dir, prefix)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, p := range paths {
		if err := readFile(p, func(v T) { out = append(out, v) }); err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(p), err)
		}
	}
	return out, nil
}

func readFile[T any](path string, fn func(T)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(v)
	}
}
