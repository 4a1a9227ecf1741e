package stage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator generates object IDs.
type IDGenerator interface {
	// Generate returns the next ID.
	Generate() string
}

var (
	idGeneratorMu           sync.Mutex
	idGeneratorInstance     IDGenerator
	idGeneratorInstantiated bool
)

// UseSequentialIDGenerator makes the stage generate IDs in sequence. IDs are
// reproducible from run to run, which is useful in tests.
func UseSequentialIDGenerator() {
	idGeneratorMu.Lock()
	defer idGeneratorMu.Unlock()

	if idGeneratorInstantiated {
		panic("cannot change the ID generator type after it is used")
	}

	idGeneratorInstance = &sequentialIDGenerator{}
	idGeneratorInstantiated = true
}

// UseParallelIDGenerator makes the stage generate IDs with xid. The IDs are
// unique across goroutines and across processes, but not reproducible.
func UseParallelIDGenerator() {
	idGeneratorMu.Lock()
	defer idGeneratorMu.Unlock()

	if idGeneratorInstantiated {
		panic("cannot change the ID generator type after it is used")
	}

	idGeneratorInstance = xidGenerator{}
	idGeneratorInstantiated = true
}

// GetIDGenerator returns the ID generator in use. If no generator is
// configured yet, the sequential generator is selected.
func GetIDGenerator() IDGenerator {
	idGeneratorMu.Lock()
	defer idGeneratorMu.Unlock()

	if !idGeneratorInstantiated {
		idGeneratorInstance = &sequentialIDGenerator{}
		idGeneratorInstantiated = true
	}

	return idGeneratorInstance
}

type sequentialIDGenerator struct {
	next atomic.Uint64
}

func (g *sequentialIDGenerator) Generate() string {
	id := g.next.Add(1) - 1
	return fmt.Sprintf("%d", id)
}

type xidGenerator struct{}

func (g xidGenerator) Generate() string {
	return xid.New().String()
}
