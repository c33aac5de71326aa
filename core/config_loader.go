package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TOMLFileLoader reads raw configuration values from a TOML file. A missing
// file yields an empty map when Optional is set.
type TOMLFileLoader struct {
	Path     string
	Optional bool
}

func NewTOMLFileLoader(path string) *TOMLFileLoader {
	return &TOMLFileLoader{Path: strings.TrimSpace(path)}
}

func (l *TOMLFileLoader) LoadRaw(_ context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) && l.Optional {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config %s: %w", l.Path, err)
	}
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: parse config %s: %w", l.Path, err)
	}
	return raw, nil
}

var _ RawConfigLoader = (*TOMLFileLoader)(nil)
