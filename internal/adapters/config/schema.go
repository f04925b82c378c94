package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kilnfile represents the structure of the kiln.yaml configuration file.
type Kilnfile struct {
	Version  string               `yaml:"version"`
	Compiler []string             `yaml:"compiler"`
	Workers  int                  `yaml:"workers"`
	Cache    CacheDTO             `yaml:"cache"`
	Modules  map[string]ModuleDTO `yaml:"modules"`
}

// Validate validates the configuration file against the schema.
func (f *Kilnfile) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.Workers, validation.Min(0)),
		validation.Field(&f.Modules, validation.Required),
	); err != nil {
		return err
	}
	if err := f.Cache.Validate(); err != nil {
		return err
	}
	for name, dto := range f.Modules {
		if err := dto.Validate(); err != nil {
			return validation.Errors{name: err}
		}
	}
	return nil
}

// CacheDTO holds the artifact cache bounds.
type CacheDTO struct {
	Dir          string `yaml:"dir"`
	MaxEntries   int    `yaml:"max_entries"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
}

// Validate validates the cache bounds.
func (c *CacheDTO) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEntries, validation.Min(0)),
		validation.Field(&c.MaxSizeBytes, validation.Min(int64(0))),
	)
}

// ModuleDTO represents a module definition in the configuration.
type ModuleDTO struct {
	Path      string   `yaml:"path"`
	DependsOn []string `yaml:"dependsOn"`
}

// Validate validates a single module definition.
func (m ModuleDTO) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Path, validation.Required),
	)
}
