package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[EntityKind]KindDefinition)
	registryMu sync.RWMutex
)

// Register adds a kind definition to the registry.
// Panics if the kind is already registered or the definition is malformed.
func Register(def KindDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("kind already registered: %s", def.Kind))
	}
	if len(def.Columns) == 0 || def.Columns[0].Key != IDColumn {
		panic(fmt.Sprintf("kind %s: first column must be %q", def.Kind, IDColumn))
	}

	// Default headers and widths
	for i, col := range def.Columns {
		if col.Header == "" {
			def.Columns[i].Header = col.Key
		}
		if col.Width == 0 {
			def.Columns[i].Width = 20
		}
		if col.Detail != nil && (def.Kind != KindTopLevel || col.Type != FieldJSON) {
			panic(fmt.Sprintf("kind %s: detail sheet %s needs a TopLevel JSON column", def.Kind, col.Detail.Name))
		}
	}

	registry[def.Kind] = def
}

// Get returns a kind definition.
// Returns false if not found.
func Get(kind EntityKind) (KindDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// MustGet returns a kind definition and panics if it is not registered.
func MustGet(kind EntityKind) KindDefinition {
	def, ok := Get(kind)
	if !ok {
		panic(fmt.Sprintf("unknown kind: %s", kind))
	}
	return def
}

// BySheet finds the kind stored on a sheet. Matching is case-insensitive.
func BySheet(sheet string) (KindDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, def := range registry {
		if strings.EqualFold(def.Sheet, sheet) {
			return def, true
		}
	}
	return KindDefinition{}, false
}

// All returns all registered kinds in workbook order: TopLevel first, then
// by rank, then by sheet name.
func All() []KindDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]KindDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return sheetOrder(result[i].Kind) < sheetOrder(result[j].Kind)
	})

	return result
}

// Children returns every kind except TopLevel in execution order.
func Children() []KindDefinition {
	var result []KindDefinition
	for _, def := range All() {
		if def.Kind != KindTopLevel {
			result = append(result, def)
		}
	}
	return result
}

// kindOrder is the fixed sheet order within a rank.
var kindOrder = []EntityKind{
	KindTopLevel,
	KindOutcome,
	KindRelease,
	KindLicense,
	KindTag,
	KindCustomAttribute,
	KindTask,
	KindTelemetryAttribute,
}

func sheetOrder(kind EntityKind) int {
	for i, k := range kindOrder {
		if k == kind {
			return i
		}
	}
	return len(kindOrder)
}

// KindCount returns the number of registered kinds.
func KindCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered kinds.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[EntityKind]KindDefinition)
}
