package opstasks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const defaultPlanCode = "standard"

// Catalog serves property service configuration from a static plan file.
type Catalog struct {
	defaultPlan reservations.ServicePlan
	plans       map[string]reservations.ServicePlan
	properties  map[string]propertyEntry
}

type propertyEntry struct {
	plan  string
	flags map[string]bool
}

type catalogFile struct {
	DefaultPlan string                  `yaml:"default_plan"`
	Plans       map[string]planFile     `yaml:"plans"`
	Properties  map[string]propertyFile `yaml:"properties"`
}

type planFile struct {
	Tasks []taskFile `yaml:"tasks"`
}

type taskFile struct {
	Kind         string `yaml:"kind"`
	Anchor       string `yaml:"anchor"`
	Offset       string `yaml:"offset"`
	RequiresFlag string `yaml:"requires_flag"`
}

type propertyFile struct {
	Plan  string          `yaml:"plan"`
	Flags map[string]bool `yaml:"flags"`
}

// DefaultCatalog has one plan: inspect the evening before arrival, clean the
// morning of departure.
func DefaultCatalog() *Catalog {
	std := reservations.ServicePlan{
		Code: defaultPlanCode,
		Tasks: []reservations.TaskTemplate{
			{Kind: reservations.TaskInspection, Anchor: reservations.AnchorCheckIn, Offset: -6 * time.Hour},
			{Kind: reservations.TaskCleaning, Anchor: reservations.AnchorCheckOut, Offset: 11 * time.Hour},
		},
	}
	return &Catalog{
		defaultPlan: std,
		plans:       map[string]reservations.ServicePlan{std.Code: std},
		properties:  map[string]propertyEntry{},
	}
}

// LoadCatalog reads a YAML plan file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service plans: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode service plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("service plans: no plans defined")
	}

	c := &Catalog{
		plans:      make(map[string]reservations.ServicePlan, len(f.Plans)),
		properties: make(map[string]propertyEntry, len(f.Properties)),
	}
	for code, pf := range f.Plans {
		plan := reservations.ServicePlan{Code: code}
		for i, tf := range pf.Tasks {
			tpl, err := tf.template()
			if err != nil {
				return nil, fmt.Errorf("plan %s task %d: %w", code, i, err)
			}
			plan.Tasks = append(plan.Tasks, tpl)
		}
		c.plans[code] = plan
	}

	def := f.DefaultPlan
	if def == "" {
		def = defaultPlanCode
	}
	plan, ok := c.plans[def]
	if !ok {
		return nil, fmt.Errorf("service plans: default plan %q not defined", def)
	}
	c.defaultPlan = plan

	for id, pf := range f.Properties {
		if pf.Plan != "" {
			if _, ok := c.plans[pf.Plan]; !ok {
				return nil, fmt.Errorf("property %s: unknown plan %q", id, pf.Plan)
			}
		}
		c.properties[id] = propertyEntry{plan: pf.Plan, flags: pf.Flags}
	}
	return c, nil
}

func (tf taskFile) template() (reservations.TaskTemplate, error) {
	tpl := reservations.TaskTemplate{
		Kind:         reservations.TaskKind(strings.TrimSpace(tf.Kind)),
		Anchor:       reservations.TaskAnchor(strings.TrimSpace(tf.Anchor)),
		RequiresFlag: strings.TrimSpace(tf.RequiresFlag),
	}
	if tpl.Kind == "" {
		return tpl, fmt.Errorf("kind required")
	}
	switch tpl.Anchor {
	case "":
		tpl.Anchor = reservations.AnchorCheckIn
	case reservations.AnchorCheckIn, reservations.AnchorCheckOut:
	default:
		return tpl, fmt.Errorf("unknown anchor %q", tf.Anchor)
	}
	if tf.Offset != "" {
		d, err := time.ParseDuration(tf.Offset)
		if err != nil {
			return tpl, fmt.Errorf("offset: %w", err)
		}
		tpl.Offset = d
	}
	return tpl, nil
}

// ServiceConfig returns the property's plan and flags. Properties the file
// does not list get the default plan without flags.
func (c *Catalog) ServiceConfig(_ context.Context, propertyID string) (reservations.ServiceConfig, error) {
	cfg := reservations.ServiceConfig{PropertyID: propertyID, Plan: c.defaultPlan, Flags: map[string]bool{}}
	p, ok := c.properties[propertyID]
	if !ok {
		return cfg, nil
	}
	if p.plan != "" {
		cfg.Plan = c.plans[p.plan]
	}
	for k, v := range p.flags {
		cfg.Flags[k] = v
	}
	return cfg, nil
}
