package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lookatitude/avatar-gateway/config"
)

// Factory constructs a ChatModel from a provider configuration. Providers
// supply a Factory to Register in their init().
type Factory func(cfg config.ProviderConfig) (ChatModel, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under name, overwriting any previous
// registration under the same name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New instantiates the provider registered under name with cfg.
func New(name string, cfg config.ProviderConfig) (ChatModel, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
	return factory(cfg)
}

// List returns the names of all registered providers, sorted alphabetically.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
