// Package catalog holds the production-hour dictionary: per (service, piece)
// ordered stages with hour estimates, piece-type detection from free-text job
// descriptions, and the decomposition of raw orders into per-unit, per-stage
// task requests.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

//go:embed dictionary.csv
var defaultDictCSV []byte

type hoursKey struct {
	service string
	piece   string
	stage   string
}

// Catalog answers StagesFor/HoursFor lookups. Build one with Default or
// LoadFile; it is immutable afterwards.
type Catalog struct {
	services   []string            // display names, CSV order
	stageOrder map[string][]string // service -> ordered stage display names
	hours      map[hoursKey]float64
	pieces     map[string]bool
}

// Default parses the embedded dictionary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultDictCSV))
}

// LoadFile parses a dictionary override from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Load parses CSV rows of the form service,piece,stage,hours. Stage order
// within a service is the order of first appearance.
func Load(r io.Reader) (*Catalog, error) {
	c := &Catalog{
		stageOrder: make(map[string][]string),
		hours:      make(map[hoursKey]float64),
		pieces:     make(map[string]bool),
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dictionary row %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "service") {
			continue
		}

		service := strings.TrimSpace(rec[0])
		piece := strings.TrimSpace(rec[1])
		stage := strings.TrimSpace(rec[2])
		if service == "" || piece == "" || stage == "" {
			return nil, fmt.Errorf("dictionary row %d: empty field", line)
		}
		hours, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("dictionary row %d: bad hours %q", line, rec[3])
		}

		k := hoursKey{fold(service), fold(piece), fold(stage)}
		if _, dup := c.hours[k]; dup {
			return nil, fmt.Errorf("dictionary row %d: duplicate %s/%s/%s", line, service, piece, stage)
		}
		c.hours[k] = hours
		c.pieces[fold(piece)] = true
		c.registerStage(service, stage)
	}

	if len(c.hours) == 0 {
		return nil, fmt.Errorf("dictionary: no rows")
	}
	return c, nil
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (c *Catalog) registerStage(service, stage string) {
	ls := fold(service)
	if _, seen := c.stageOrder[ls]; !seen {
		c.services = append(c.services, service)
	}
	for _, s := range c.stageOrder[ls] {
		if strings.EqualFold(s, stage) {
			return
		}
	}
	c.stageOrder[ls] = append(c.stageOrder[ls], stage)
}

// Services lists the known service names in dictionary order.
func (c *Catalog) Services() []string {
	return append([]string(nil), c.services...)
}

// StagesFor returns the ordered stage names for a service.
func (c *Catalog) StagesFor(service string) ([]string, bool) {
	stages, ok := c.stageOrder[fold(service)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), stages...), true
}

// HoursFor returns the hour estimate for one stage of one piece type.
// Not every piece carries every stage of its service (doors skip assembly).
func (c *Catalog) HoursFor(service, piece, stage string) (float64, bool) {
	h, ok := c.hours[hoursKey{fold(service), fold(piece), fold(stage)}]
	return h, ok
}

// pieceKeywords maps free-text cues to canonical piece names. Scanned by
// descending keyword length so longer, more specific cues win.
var pieceKeywords = map[string]string{
	"night stand": "nightstand",
	"nightstand":  "nightstand",
	"bookshelf":   "bookcase",
	"bookcase":    "bookcase",
	"sideboard":   "cabinet",
	"cupboard":    "cabinet",
	"cabinet":     "cabinet",
	"vanity":      "cabinet",
	"hutch":       "cabinet",
	"buffet":      "cabinet",
	"dresser":     "dresser",
	"bureau":      "dresser",
	"chest":       "dresser",
	"table":       "table",
	"desk":        "table",
	"chair":       "chair",
	"stool":       "chair",
	"bench":       "bench",
	"door":        "door",
}

// DetectPiece matches a job description against the keyword table, keeping
// only pieces the loaded dictionary actually has hours for.
func (c *Catalog) DetectPiece(jobText string) (string, bool) {
	text := fold(jobText)
	kws := make([]string, 0, len(pieceKeywords))
	for kw := range pieceKeywords {
		kws = append(kws, kw)
	}
	sort.Slice(kws, func(i, j int) bool {
		if len(kws[i]) != len(kws[j]) {
			return len(kws[i]) > len(kws[j])
		}
		return kws[i] < kws[j]
	})
	for _, kw := range kws {
		if strings.Contains(text, kw) && c.pieces[pieceKeywords[kw]] {
			return pieceKeywords[kw], true
		}
	}
	return "", false
}
