package game

import (
	"sort"
	"sync"
)

// Fallback is the dialect used for servers with an unknown or empty game.
const Fallback = "sourcemod"

var (
	mu       sync.RWMutex
	dialects = map[string]Dialect{}
)

func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Game()] = d
}

// Get returns the dialect for game, or nil if none is registered.
func Get(game string) Dialect {
	mu.RLock()
	defer mu.RUnlock()
	return dialects[game]
}

// Lookup returns the dialect for game, falling back to the Fallback dialect.
// ok is false when the fallback was used.
func Lookup(game string) (d Dialect, ok bool) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[game]; ok {
		return d, true
	}
	return dialects[Fallback], false
}

// Names lists registered dialects in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
