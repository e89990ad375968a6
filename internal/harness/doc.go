// Package harness runs claim scenarios written in YAML.
//
// A scenario lists the principals the verifier accepts, an optional CUE
// policy file, a flow of claim operations with expected outcomes, and
// assertions over the final registry state and the notification trace.
//
// Each run uses a fresh in-memory store, a deterministic sequence clock and
// sequential operation ids ("op-0001", ...), so the same scenario always
// produces byte-identical traces. RunWithGolden compares that trace against
// testdata/golden/<name>.golden.
//
// Example scenario:
//
//	name: approve_claim
//	description: Claim is created, documented and approved
//	principals: [alice, adjuster]
//	flow:
//	  - invoke: create_claim
//	    caller: alice
//	    args: {claimant: alice, policy_number: POL-1}
//	    expect: {id: 1}
//	  - invoke: update_status
//	    caller: adjuster
//	    args: {claim_id: 1, status: Approved}
//	assertions:
//	  - type: notification_order
//	    kinds: [claim_created, status_updated]
package harness
