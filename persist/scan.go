/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package persist

import (
	"strings"

	"github.com/karrick/godirwalk"
)

// ScanSimStateDir walks dir once at startup and returns the short names
// of every region whose "simstate-<short>.dat" file is present, the way
// a region host enumerates what it has on disk before deciding what to
// load versus what needs RepairSimState. Uses godirwalk instead of
// filepath.Walk/os.ReadDir for the same reason the rest of the corpus
// reaches for it over a large asset tree: it avoids the lstat-per-entry
// cost of filepath.Walk by reusing the directory-entry type the kernel
// already returned.
func ScanSimStateDir(dir string) ([]string, error) {
	var shortNames []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := de.Name()
			if !strings.HasPrefix(name, "simstate-") || !strings.HasSuffix(name, ".dat") {
				return nil
			}
			short := strings.TrimSuffix(strings.TrimPrefix(name, "simstate-"), ".dat")
			shortNames = append(shortNames, short)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return shortNames, nil
}
