// Package peers keeps the comparable company and precedent transaction sets
// used by the relative valuation methods.
package peers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/valuation"
)

// Set is the content of one peer file.
type Set struct {
	Industry    string                           `yaml:"industry" json:"industry"`
	Comparables []valuation.ComparableCompany    `yaml:"comparables" json:"comparables"`
	Precedents  []valuation.PrecedentTransaction `yaml:"precedents" json:"precedents"`
}

// Catalog indexes peers by normalized industry. Reads are safe while a
// reload is running.
type Catalog struct {
	files  []string
	logger *log.Logger

	mu          sync.RWMutex
	comparables map[string][]valuation.ComparableCompany
	precedents  map[string][]valuation.PrecedentTransaction
	loadedAt    time.Time

	cron *cron.Cron
}

var _ valuation.PeerProvider = (*Catalog)(nil)

func NewCatalog(files []string, logger *log.Logger) *Catalog {
	return &Catalog{
		files:       append([]string(nil), files...),
		logger:      logging.Component(logger, "peers"),
		comparables: map[string][]valuation.ComparableCompany{},
		precedents:  map[string][]valuation.PrecedentTransaction{},
	}
}

// Comparables returns a copy of the comparable set for industry.
func (c *Catalog) Comparables(industry string) []valuation.ComparableCompany {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]valuation.ComparableCompany(nil), c.comparables[assumption.NormalizeIndustry(industry)]...)
}

// Precedents returns a copy of the precedent set for industry.
func (c *Catalog) Precedents(industry string) []valuation.PrecedentTransaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]valuation.PrecedentTransaction(nil), c.precedents[assumption.NormalizeIndustry(industry)]...)
}

// Industries lists industries with at least one peer, sorted.
func (c *Catalog) Industries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	for k := range c.comparables {
		seen[k] = true
	}
	for k := range c.precedents {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Add merges a set into the catalog.
func (c *Catalog) Add(s Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merge(c.comparables, c.precedents, s)
}

func (c *Catalog) merge(comps map[string][]valuation.ComparableCompany, precs map[string][]valuation.PrecedentTransaction, s Set) {
	for _, p := range s.Comparables {
		key := assumption.NormalizeIndustry(firstNonEmpty(p.Industry, s.Industry))
		comps[key] = append(comps[key], p)
	}
	for _, p := range s.Precedents {
		key := assumption.NormalizeIndustry(firstNonEmpty(p.Industry, s.Industry))
		precs[key] = append(precs[key], p)
	}
}

// Reload re-reads every file and swaps the index in one step. On error the
// previous index is kept.
func (c *Catalog) Reload() error {
	comps := map[string][]valuation.ComparableCompany{}
	precs := map[string][]valuation.PrecedentTransaction{}
	for _, f := range c.files {
		set, err := LoadFile(f)
		if err != nil {
			return fmt.Errorf("load peers %s: %w", f, err)
		}
		c.merge(comps, precs, set)
	}

	c.mu.Lock()
	c.comparables, c.precedents = comps, precs
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info().Int("files", len(c.files)).Int("industries", len(c.Industries())).Msg("peer catalog loaded")
	return nil
}

// LoadedAt reports when the last successful reload finished.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// StartRefresh reloads on a cron schedule (e.g. "@every 1h") until Stop.
func (c *Catalog) StartRefresh(schedule string) error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(schedule, func() {
		if err := c.Reload(); err != nil {
			c.logger.Error().Err(err).Msg("peer reload failed, keeping previous catalog")
		}
	}); err != nil {
		return fmt.Errorf("peer refresh schedule %q: %w", schedule, err)
	}
	c.cron.Start()
	return nil
}

// Stop halts the refresh schedule and waits for a running reload.
func (c *Catalog) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// LoadFile parses a YAML, JSON or HTML peer file.
func LoadFile(path string) (Set, error) {
	var set Set
	data, err := os.ReadFile(path)
	if err != nil {
		return set, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &set)
	case ".json":
		err = json.Unmarshal(data, &set)
	case ".html", ".htm":
		set, err = ParseHTML(strings.NewReader(string(data)))
	default:
		err = fmt.Errorf("unsupported peer file type %q", filepath.Ext(path))
	}
	return set, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return assumption.DefaultIndustry
}
