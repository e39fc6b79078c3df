package config

import "sort"

var Presets = map[string]*Config{
	"simulation": DefaultConfig(),
	"headless": func() *Config {
		c := DefaultConfig()
		c.Workers = 4
		c.Debugger.Enabled = false
		c.Steps = 600
		return c
	}(),
	"cooking": func() *Config {
		c := DefaultConfig()
		c.Variant = "cooking"
		c.Debugger.Enabled = false
		c.Steps = 0
		c.Cooking.WeldTolerance = 0.001
		return c
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
