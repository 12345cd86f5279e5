// Package vmem provides anonymous page-granular memory with switchable protection.
//
// # Overview
//
// Local storage areas are built out of single OS pages whose protection is
// kept at "no access" except while the library itself is transferring bytes.
// This package is the thin portable layer over the virtual-memory syscalls
// that makes that possible: anonymous private mappings, unmapping, and
// protection changes.
//
// # Usage
//
//	b, err := vmem.Map(vmem.PageSize(), vmem.ProtNone)
//	if err != nil { ... }
//	defer vmem.Unmap(b)
//
//	_ = vmem.Protect(b, vmem.ProtReadWrite)
//	copy(b, payload)
//	_ = vmem.Protect(b, vmem.ProtNone)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE and mprotect(2)
//   - Windows: VirtualAlloc/VirtualProtect/VirtualFree
//
// # Thread Safety
//
// The functions in this package are stateless wrappers around syscalls and are
// safe for concurrent use on distinct mappings. Callers serialize protection
// changes on a shared mapping themselves.
package vmem
