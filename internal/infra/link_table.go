package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// LinkTable is the static SKU → product page URL mapping. The file is read
// once, on first lookup, and kept in memory for the life of the process.
type LinkTable struct {
	path  string
	once  sync.Once
	links map[string]string
}

func NewLinkTable(path string) *LinkTable {
	return &LinkTable{path: path}
}

// Lookup returns the product page URL of sku, if the table has one.
func (t *LinkTable) Lookup(sku string) (string, bool) {
	t.once.Do(t.load)
	url, ok := t.links[sku]
	return url, ok && url != ""
}

// Path is the file the table was loaded from.
func (t *LinkTable) Path() string { return t.path }

// Len returns the number of loaded links.
func (t *LinkTable) Len() int {
	t.once.Do(t.load)
	return len(t.links)
}

func (t *LinkTable) load() {
	links, err := readLinks(t.path)
	if err != nil {
		// A missing table only means links stay unset.
		log.Warn().Err(err).Str("path", t.path).Msg("link_table: not loaded")
		links = map[string]string{}
	}
	t.links = links
	log.Info().Int("links", len(links)).Msg("link_table: loaded")
}

func readLinks(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var links map[string]string
	if err := json.Unmarshal(b, &links); err != nil {
		return nil, fmt.Errorf("link_table: decode %s: %w", path, err)
	}
	return links, nil
}
