/*
Package ports defines the driven ports (interfaces) for the loanvoice core.

These interfaces decouple the flow engine from external implementations,
allowing it to work with various snapshot stores, decision drivers, and
speech providers.

# Key Interfaces

  - SnapshotStore: persistence for observer-facing session snapshots
    (memory or Redis).
  - Registry: the session registry contract the engine publishes to.
  - Driver: the external decision oracle (an LLM) that picks at most one
    transition per utterance.
  - Transcriber / Synthesizer: the speech provider boundary.
*/
package ports
