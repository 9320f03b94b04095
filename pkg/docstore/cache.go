package docstore

import (
	"fmt"
	"sync"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/models"
	"github.com/blobstash/blobstash.go/pkg/patch"
)

type IntentKind int

const (
	// IntentPatch sends an RFC 6902 patch against the cached baseline.
	IntentPatch IntentKind = iota
	// IntentReplace sends the full document.
	IntentReplace
)

func (k IntentKind) String() string {
	switch k {
	case IntentPatch:
		return "patch"
	case IntentReplace:
		return "replace"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// WriteIntent describes the conditional write for one document.
type WriteIntent struct {
	Kind IntentKind
	// Ops is set for IntentPatch.
	Ops patch.Patch
	// Body is set for IntentReplace.
	Body        *models.Object
	Fingerprint string
}

// Cache holds the last known server state of documents, keyed by id. It is
// safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	baselines map[string]*models.Object
}

func NewCache() *Cache {
	return &Cache{baselines: make(map[string]*models.Object)}
}

// Store records a deep copy of body as the baseline for id.
func (c *Cache) Store(id string, body *models.Object) {
	if id == "" || body == nil {
		return
	}
	snapshot := body.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baselines[id] = snapshot
}

// Baseline returns a copy of the baseline for id.
func (c *Cache) Baseline(id string) (*models.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.baselines[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// PrepareUpdate builds the write for mutated. With a baseline for id the
// intent is a patch and the baseline is evicted; otherwise it replaces the
// whole document.
func (c *Cache) PrepareUpdate(id, fingerprint string, mutated *models.Object) (*WriteIntent, error) {
	if id == "" {
		return nil, constants.ErrMissingIdentity
	}
	if mutated == nil {
		return nil, fmt.Errorf("%w: nil document %s", constants.ErrInvalidRecord, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	baseline, ok := c.baselines[id]
	if !ok {
		return &WriteIntent{Kind: IntentReplace, Body: mutated.Clone(), Fingerprint: fingerprint}, nil
	}

	ops := patch.DiffObjects(baseline, mutated)
	delete(c.baselines, id)
	return &WriteIntent{Kind: IntentPatch, Ops: ops, Fingerprint: fingerprint}, nil
}

func (c *Cache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.baselines, id)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.baselines)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.baselines)
}
