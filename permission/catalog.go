package permission

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknown reports a permission name absent from the catalog. This is a
// configuration error, not an authorization failure: a check against a
// name the catalog has never seen must fail loudly instead of silently
// denying.
var ErrUnknown = errors.New("unknown permission")

// Catalog maps permission names to their store-assigned ids. It is
// populated once at startup from the authoritative permission table and
// frozen before use.
type Catalog struct {
	mu       sync.RWMutex
	nameToID map[string]string
	idToName map[string]string
	frozen   bool
}

// NewCatalog creates an empty permission catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		nameToID: make(map[string]string),
		idToName: make(map[string]string),
	}
}

// Register adds a (id, name) pair. Must be called before [Catalog.Freeze].
func (c *Catalog) Register(id, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return errors.New("catalog frozen")
	}
	if id == "" || name == "" {
		return errors.New("permission id and name cannot be empty")
	}
	if _, exists := c.nameToID[name]; exists {
		return fmt.Errorf("permission %q already registered", name)
	}
	if _, exists := c.idToName[id]; exists {
		return fmt.Errorf("permission id %q already registered", id)
	}

	c.nameToID[name] = id
	c.idToName[id] = name
	return nil
}

// Freeze prevents further registrations. Must be called before the
// catalog is used for resolution.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// ID returns the id for the named permission.
func (c *Catalog) ID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.nameToID[name]
	return id, ok
}

// Name returns the permission name for the given id.
func (c *Catalog) Name(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.idToName[id]
	return name, ok
}

// Count returns the number of registered permissions.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nameToID)
}

// IDs maps the given permission names to ids, failing with [ErrUnknown]
// on the first name the catalog does not carry.
func (c *Catalog) IDs(names []string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := c.nameToID[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
