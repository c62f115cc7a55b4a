package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var receiptExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// IsReceiptFile reports whether path has a receipt file extension.
func IsReceiptFile(path string) bool {
	return receiptExts[strings.ToLower(filepath.Ext(path))]
}

// ScanDir walks dir and returns every receipt file in it, sorted by path.
// Hidden files and directories are skipped. A missing dir yields no files.
func ScanDir(dir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsReceiptFile(path) {
			return nil
		}
		files = append(files, DiscoveredFile{
			Path: path,
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}
