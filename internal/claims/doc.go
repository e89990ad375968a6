// Package claims implements the insurance claim registry: creation, the
// append-only document ledger and the status engine.
//
// Every mutating operation follows the same shape:
//
//  1. verify the caller through the injected auth.Verifier
//  2. validate the input against the active Rules
//  3. run one atomic read-modify-write unit on the kv.Store
//  4. emit one notification after the unit commits
//
// A failed operation writes nothing and emits nothing. Notification delivery
// is best-effort and never turns a committed operation into a failure.
//
// Claim ids come from a persisted counter that is read and incremented in
// the same unit as the claim write, so ids are dense, start at 1 and are
// never reused.
package claims
