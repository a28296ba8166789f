package zeros

import (
	"strings"
)

// CategoryHost holds host-environment capabilities such as storage or clipboard access.
const CategoryHost = "host"

// BackgroundService is an always-on entity the self-check re-registers when it
// finds it missing.
type BackgroundService struct {
	Key    string
	Create func() (any, error)
}

// SelfCheckInventory lists what each standard stage expects to find. Items are
// registry keys in the stage's default category; "category:key" selects
// another category.
type SelfCheckInventory struct {
	CoreModules      []string `yaml:"core" toml:"core" json:"core"`
	TypeRegistries   []string `yaml:"types" toml:"types" json:"types"`
	Filesystem       []string `yaml:"filesystem" toml:"filesystem" json:"filesystem"`
	Memory           []string `yaml:"memory" toml:"memory" json:"memory"`
	Processes        []string `yaml:"processes" toml:"processes" json:"processes"`
	GUI              []string `yaml:"gui" toml:"gui" json:"gui"`
	Peripherals      []string `yaml:"peripherals" toml:"peripherals" json:"peripherals"`
	HostCapabilities []string `yaml:"host" toml:"host" json:"host"`

	// Background services are repaired during the process stage.
	Background []BackgroundService `yaml:"-" toml:"-" json:"-"`
}

// Empty reports whether the inventory lists nothing.
func (inv SelfCheckInventory) Empty() bool {
	return len(inv.CoreModules) == 0 && len(inv.TypeRegistries) == 0 &&
		len(inv.Filesystem) == 0 && len(inv.Memory) == 0 &&
		len(inv.Processes) == 0 && len(inv.GUI) == 0 &&
		len(inv.Peripherals) == 0 && len(inv.HostCapabilities) == 0 &&
		len(inv.Background) == 0
}

func splitItem(item, category string) (string, string) {
	if c, k, ok := strings.Cut(item, ":"); ok {
		return c, k
	}
	return category, item
}

func requireAll(c *Checker, items []string, category string, critical bool) {
	for _, item := range items {
		cat, key := splitItem(item, category)
		c.Require(cat, key, critical)
	}
}

func expectAll(c *Checker, items []string, category string) {
	for _, item := range items {
		cat, key := splitItem(item, category)
		c.Expect(cat, key)
	}
}

// StandardStages returns the eight boot self-check stages in their fixed order:
// core modules, type registries, filesystem, memory, process management, GUI
// subsystems, peripheral drivers and host capabilities.
//
// Everything through process management is critical. GUI subsystems are
// non-critical failures. Peripherals and host capabilities only ever warn.
func StandardStages(inv SelfCheckInventory) []Stage {
	return []Stage{
		{
			Name:        "core",
			Description: "Verifying core modules",
			Run: func(c *Checker) {
				reg := c.Registry()
				c.Check("module registry", reg != nil && reg.Has(CategoryModules), true)
				requireAll(c, inv.CoreModules, CategoryModules, true)
			},
		},
		{
			Name:        "types",
			Description: "Verifying type registries",
			Run: func(c *Checker) {
				requireAll(c, inv.TypeRegistries, CategoryTypes, true)
			},
		},
		{
			Name:        "filesystem",
			Description: "Checking filesystem",
			Run: func(c *Checker) {
				requireAll(c, inv.Filesystem, CategoryServices, true)
			},
		},
		{
			Name:        "memory",
			Description: "Checking memory manager",
			Run: func(c *Checker) {
				requireAll(c, inv.Memory, CategoryServices, true)
			},
		},
		{
			Name:        "process",
			Description: "Checking process management",
			Run: func(c *Checker) {
				requireAll(c, inv.Processes, CategoryServices, true)
				for _, svc := range inv.Background {
					c.Repair(CategoryServices, svc.Key, svc.Create, true)
				}
			},
		},
		{
			Name:        "gui",
			Description: "Checking GUI subsystems",
			Run: func(c *Checker) {
				requireAll(c, inv.GUI, CategoryServices, false)
			},
		},
		{
			Name:        "peripherals",
			Description: "Probing peripheral drivers",
			Run: func(c *Checker) {
				for _, item := range inv.Peripherals {
					cat, key := splitItem(item, CategoryDrivers)
					if c.Capability(cat, key) == CapabilityAbsent {
						c.WaitReady(key)
					}
					c.Expect(cat, key)
				}
			},
		},
		{
			Name:        "host",
			Description: "Checking host capabilities",
			Run: func(c *Checker) {
				expectAll(c, inv.HostCapabilities, CategoryHost)
			},
		},
	}
}
