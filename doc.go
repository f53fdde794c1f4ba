/*
Package loanvoice is a voice-call orchestration service for loan collection,
built around a deterministic conversation-flow state machine.

The conversation is a graph of nodes. Each node carries a prompt for the
speaking agent and a set of named transitions; a transition's handler writes
facts into the session's state bag and computes the next node. An LLM driver
chooses which transition to invoke from each borrower utterance, but the
driver can never take the conversation anywhere the graph does not allow.
Given the same session state and transition arguments, the outcome is always
reproducible.

# Architecture

The core follows a hexagonal layout. pkg/domain holds the pure types,
pkg/flow the graph builder and validator, and internal/runtime the engine
that serializes per-session access and enforces transition contracts.
Everything at the edges is an adapter: Gemini as decision driver, Deepgram
and Edge TTS for speech, Pion WebRTC for transport, and a session registry
(in-memory or Redis) that publishes live snapshots for dashboards.

# Usage

Build a service with New, then wire the HTTP surface or drive the engine
directly:

	svc, err := loanvoice.New()
	if err != nil {
		log.Fatal(err)
	}
	view, err := svc.Engine.StartSession(ctx, "call-1", "edge")
	result, err := svc.Engine.Invoke(ctx, "call-1", "confirm_identity", nil)
*/
package loanvoice
