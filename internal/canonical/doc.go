// Package canonical provides the sealed value model and RFC 8785 canonical
// JSON encoding used wherever claimledger needs byte-stable output: the
// notification journal, its digest chain and golden traces.
//
// Key constraints:
//   - NO floats and NO null (claim data never needs them)
//   - Strings are NFC normalized at the serialization boundary
//   - Object keys are ordered by UTF-16 code units
//
// This package imports nothing internal.
package canonical
