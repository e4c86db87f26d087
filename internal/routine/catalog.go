// Package routine generates multi-day task plans from closed, weighted catalogs. Plans come
// from the inference gateway when its answer passes every structural rule, otherwise from a
// deterministic weighted rotation over the same catalogs.
package routine

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/growth/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Plan shape shared by the validator and the fallback builder.
const (
	DayCount    = 15
	TasksPerDay = 5
)

// Categories lists the catalogs in the order tasks are laid out within a day.
var Categories = []domain.Category{domain.CategoryDiet, domain.CategoryProtocol, domain.CategoryExercise}

// Quota is the number of distinct items each day takes from each category.
var Quota = map[domain.Category]int{
	domain.CategoryDiet:     1,
	domain.CategoryProtocol: 2,
	domain.CategoryExercise: 2,
}

// Item is one catalog entry. Exactly one of Reps and DurationMinutes is the base amount.
type Item struct {
	Name            string          `yaml:"name" json:"name"`
	TaskType        domain.TaskType `yaml:"type" json:"type"`
	Weight          int             `yaml:"weight" json:"weight"`
	Reps            int             `yaml:"reps,omitempty" json:"reps,omitempty"`
	DurationMinutes int             `yaml:"durationMinutes,omitempty" json:"durationMinutes,omitempty"`
	Step            int             `yaml:"step" json:"-"`
	Overload        string          `yaml:"overload" json:"overload"`
	Category        domain.Category `yaml:"-" json:"-"`
}

type catalogFile struct {
	Version   string `yaml:"version"`
	Diet      []Item `yaml:"diet"`
	Protocols []Item `yaml:"protocols"`
	Exercises []Item `yaml:"exercises"`
}

// Catalog is the validated, immutable set of items plus their precomputed selection pools.
type Catalog struct {
	version string
	items   map[domain.Category][]Item
	byName  map[string]Item
	pools   map[domain.Category][]Item
}

// DefaultCatalog parses the embedded catalog. It panics if the embedded file is invalid,
// which a unit test guards against.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("routine: embedded catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a YAML catalog definition.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if strings.TrimSpace(file.Version) == "" {
		return nil, errors.New("catalog version is required")
	}

	c := &Catalog{
		version: file.Version,
		items: map[domain.Category][]Item{
			domain.CategoryDiet:     file.Diet,
			domain.CategoryProtocol: file.Protocols,
			domain.CategoryExercise: file.Exercises,
		},
		byName: make(map[string]Item),
		pools:  make(map[domain.Category][]Item),
	}

	for _, category := range Categories {
		items := c.items[category]
		if len(items) < Quota[category] {
			return nil, fmt.Errorf("%s catalog needs at least %d items, has %d", category, Quota[category], len(items))
		}
		for i := range items {
			item := &items[i]
			item.Name = strings.TrimSpace(item.Name)
			item.Category = category
			if err := validateItem(*item); err != nil {
				return nil, fmt.Errorf("%s item %q: %w", category, item.Name, err)
			}
			key := nameKey(item.Name)
			if _, dup := c.byName[key]; dup {
				return nil, fmt.Errorf("duplicate catalog item %q", item.Name)
			}
			c.byName[key] = *item
			for w := 0; w < item.Weight; w++ {
				c.pools[category] = append(c.pools[category], *item)
			}
		}
	}
	return c, nil
}

func validateItem(item Item) error {
	if item.Name == "" {
		return errors.New("name is required")
	}
	switch item.TaskType {
	case domain.TaskStretch, domain.TaskStrength, domain.TaskLifestyle:
	default:
		return fmt.Errorf("unknown type %q", item.TaskType)
	}
	if item.Weight < 1 {
		return errors.New("weight must be >= 1")
	}
	if item.Step < 0 {
		return errors.New("step must be >= 0")
	}
	if (item.Reps == 0) == (item.DurationMinutes == 0) {
		return errors.New("exactly one of reps or durationMinutes must be set")
	}
	if item.Reps != 0 && (item.Reps < domain.MinReps || item.Reps > domain.MaxReps) {
		return fmt.Errorf("reps %d outside [%d,%d]", item.Reps, domain.MinReps, domain.MaxReps)
	}
	if item.DurationMinutes != 0 && (item.DurationMinutes < domain.MinDurationMinutes || item.DurationMinutes > domain.MaxDurationMinutes) {
		return fmt.Errorf("durationMinutes %d outside [%d,%d]", item.DurationMinutes, domain.MinDurationMinutes, domain.MaxDurationMinutes)
	}
	return nil
}

// Version identifies the catalog revision; it is part of every routine fingerprint.
func (c *Catalog) Version() string { return c.version }

// Items returns the entries of one category in declaration order.
func (c *Catalog) Items(category domain.Category) []Item {
	return append([]Item(nil), c.items[category]...)
}

// Lookup finds an item by name, ignoring case and surrounding whitespace.
func (c *Catalog) Lookup(name string) (Item, bool) {
	item, ok := c.byName[nameKey(name)]
	return item, ok
}

// Pool returns the weighted selection pool of a category.
func (c *Catalog) Pool(category domain.Category) []Item {
	return append([]Item(nil), c.pools[category]...)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
