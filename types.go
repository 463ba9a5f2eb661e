package uniquestore

import (
	"github.com/hupe1980/uniquestore/core"
)

// Re-exported core types so that typical Store callers do not need to import
// the core package.
type (
	// EntryRef is an opaque handle to a unique value. See core.EntryRef.
	EntryRef = core.EntryRef
	// Generation is a write-epoch counter. See core.Generation.
	Generation = core.Generation
	// MemoryUsage is the memory footprint breakdown. See core.MemoryUsage.
	MemoryUsage = core.MemoryUsage
)

// InvalidEntryRef is the reserved sentinel distinct from all valid refs.
const InvalidEntryRef = core.InvalidEntryRef
