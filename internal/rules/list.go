package rules

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListDecks returns the deck files directly inside dir, sorted by name.
func ListDecks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var decks []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !supported(entry.Name()) {
			continue
		}
		decks = append(decks, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(decks)
	return decks, nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
