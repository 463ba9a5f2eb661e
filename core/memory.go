package core

// MemoryUsage breaks down the memory footprint of a store component.
//
//   - AllocatedBytes: memory reserved, including freelists
//   - UsedBytes: memory referenced by the live (writer-visible) structure
//   - DeadBytes: reserved memory not referenced by anything, available for reuse
//   - HoldBytes: memory retired by copy-on-write updates, kept alive for
//     readers until the hold lists are trimmed
type MemoryUsage struct {
	AllocatedBytes uint64
	UsedBytes      uint64
	DeadBytes      uint64
	HoldBytes      uint64
}

// Merge accumulates another component's usage into u.
func (u *MemoryUsage) Merge(o MemoryUsage) {
	u.AllocatedBytes += o.AllocatedBytes
	u.UsedBytes += o.UsedBytes
	u.DeadBytes += o.DeadBytes
	u.HoldBytes += o.HoldBytes
}
