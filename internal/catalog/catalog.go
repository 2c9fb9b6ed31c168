// Package catalog holds the closed registry of block kinds. Kinds are
// declared in HCL manifests (a builtin set is embedded in the binary, more
// can be layered from disk) and are immutable once loaded. The validator and
// generator receive a *Catalog explicitly; there is no global instance.
package catalog

import (
	"fmt"
	"sort"
)

// UnknownKindError is returned by Lookup for kind ids absent from the catalog.
type UnknownKindError struct {
	ID string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown block kind %q", e.ID)
}

// Catalog is a read-only registry of block kinds keyed by kind id.
type Catalog struct {
	kinds map[string]*BlockKind
}

// Lookup returns the kind for the given id, or an *UnknownKindError.
func (c *Catalog) Lookup(id string) (*BlockKind, error) {
	k, ok := c.kinds[id]
	if !ok {
		return nil, &UnknownKindError{ID: id}
	}
	return k, nil
}

// Has reports whether a kind id exists without constructing an error.
func (c *Catalog) Has(id string) bool {
	_, ok := c.kinds[id]
	return ok
}

// IDs returns all kind ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.kinds))
	for id := range c.kinds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered kinds.
func (c *Catalog) Len() int {
	return len(c.kinds)
}

// add registers a kind, rejecting duplicate ids.
func (c *Catalog) add(k *BlockKind) error {
	if _, ok := c.kinds[k.ID]; ok {
		return fmt.Errorf("duplicate block kind %q", k.ID)
	}
	c.kinds[k.ID] = k
	return nil
}
