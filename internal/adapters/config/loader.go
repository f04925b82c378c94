// Package config provides the kiln.yaml configuration loader.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file looked up in the working directory.
const DefaultFilename = "kiln.yaml"

const (
	defaultCacheDir     = ".kiln/cache"
	defaultMaxEntries   = 4096
	defaultMaxSizeBytes = 1 << 30 // 1 GiB
)

// FileConfigLoader implements ports.ConfigLoader using a YAML file.
type FileConfigLoader struct {
	Filename string
}

// Load reads the configuration from the given working directory.
func (l *FileConfigLoader) Load(cwd string) (*domain.Config, error) {
	filename := l.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	return Load(filepath.Join(cwd, filename))
}

// Load reads a configuration file from the given path and returns the
// parsed engine configuration plus the project definition.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, errors.Join(domain.ErrConfigReadFailed,
			zerr.With(zerr.Wrap(err, "failed to read configuration"), "path", path))
	}

	var kilnfile Kilnfile
	if err := yaml.Unmarshal(data, &kilnfile); err != nil {
		return nil, errors.Join(domain.ErrConfigParseFailed,
			zerr.With(zerr.Wrap(err, "failed to parse configuration"), "path", path))
	}

	if err := kilnfile.Validate(); err != nil {
		return nil, errors.Join(domain.ErrConfigInvalid,
			zerr.With(zerr.Wrap(err, "invalid configuration"), "path", path))
	}

	root := filepath.Dir(path)

	// First pass: collect module ids so dependencies can be verified.
	moduleIDs := make(map[string]bool, len(kilnfile.Modules))
	for name := range kilnfile.Modules {
		moduleIDs[name] = true
	}

	// Second pass: build the source units.
	units := make([]domain.SourceUnit, 0, len(kilnfile.Modules))
	for name, dto := range kilnfile.Modules {
		for _, dep := range dto.DependsOn {
			if !moduleIDs[dep] {
				return nil, errors.Join(domain.ErrUnknownDependency,
					zerr.With(zerr.With(zerr.New("unknown dependency"),
						"module", name),
						"dependency", dep))
			}
			if dep == name {
				return nil, errors.Join(domain.ErrCycleDetected,
					zerr.With(zerr.New("cyclic module dependency"), "cycle", name+" -> "+name))
			}
		}

		units = append(units, domain.SourceUnit{
			ID:           domain.NewInternedString(name),
			Path:         resolvePath(root, dto.Path),
			Dependencies: canonicalizeStrings(dto.DependsOn),
		})
	}

	slices.SortFunc(units, func(a, b domain.SourceUnit) int {
		switch {
		case a.ID.String() < b.ID.String():
			return -1
		case a.ID.String() > b.ID.String():
			return 1
		default:
			return 0
		}
	})

	return &domain.Config{
		Project: domain.Project{
			Root:  root,
			Units: units,
		},
		Compiler: kilnfile.Compiler,
		Workers:  kilnfile.Workers,
		Cache:    cacheConfig(root, kilnfile.Cache),
	}, nil
}

// cacheConfig applies defaults: the cache lives under the project root and
// is always bounded. A zero bound selects the default, not "unbounded".
func cacheConfig(root string, dto CacheDTO) domain.CacheConfig {
	cfg := domain.CacheConfig{
		Dir:          resolvePath(root, dto.Dir),
		MaxEntries:   dto.MaxEntries,
		MaxSizeBytes: dto.MaxSizeBytes,
	}
	if dto.Dir == "" {
		cfg.Dir = filepath.Join(root, defaultCacheDir)
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.MaxSizeBytes == 0 {
		cfg.MaxSizeBytes = defaultMaxSizeBytes
	}
	return cfg
}

func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}

	sorted := make([]string, len(strs))
	copy(sorted, strs)
	slices.Sort(sorted)

	unique := slices.Compact(sorted)
	res := make([]domain.InternedString, len(unique))
	for i, s := range unique {
		res[i] = domain.NewInternedString(s)
	}
	return res
}
