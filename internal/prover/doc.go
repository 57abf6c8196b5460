// Package prover defines the boundary to the verifiable-computation engine
// that commits to attestation public values and proves them. It ships a
// deterministic MockProver for development and a NetworkProver that talks to
// a remote proving service over HTTP.
package prover
