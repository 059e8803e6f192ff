package session

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/samber/lo"
)

// Module is a loaded engine module.
type Module interface {
	// Lookup resolves an exported symbol. Functions resolve to their value,
	// variables to a pointer.
	Lookup(symbol string) (any, error)
	Close() error
}

// Loader loads engine modules by path.
type Loader interface {
	Load(path string) (Module, error)
}

// PluginLoader loads engine modules built with -buildmode=plugin.
type PluginLoader struct{}

func (PluginLoader) Load(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &pluginModule{p: p}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m *pluginModule) Lookup(symbol string) (any, error) {
	return m.p.Lookup(symbol)
}

// Close is a no-op: the Go runtime never unloads a plugin.
func (m *pluginModule) Close() error {
	return nil
}

// StaticLoader serves modules linked into the host binary, registered under
// a name that stands in for the module path.
type StaticLoader struct {
	mu      sync.RWMutex
	modules map[string]map[string]any
}

func NewStaticLoader() *StaticLoader {
	return &StaticLoader{modules: make(map[string]map[string]any)}
}

// Register makes symbols loadable under name, replacing any previous module
// registered with the same name.
func (l *StaticLoader) Register(name string, symbols map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[name] = symbols
}

// Names returns the registered module names.
func (l *StaticLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Keys(l.modules)
}

func (l *StaticLoader) Load(name string) (Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols, ok := l.modules[name]
	if !ok {
		return nil, fmt.Errorf("no static module registered as %q", name)
	}
	return &staticModule{symbols: symbols}, nil
}

type staticModule struct {
	symbols map[string]any
}

func (m *staticModule) Lookup(symbol string) (any, error) {
	sym, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	return sym, nil
}

func (m *staticModule) Close() error {
	return nil
}
