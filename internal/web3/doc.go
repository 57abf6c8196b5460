// Package web3 houses blockchain connectivity for on-chain proof checks: chain
// definitions loaded from YAML, the contract-call abstraction, and the
// verifier gateway client in the ethereum subpackage.
package web3
