/*
Package domain contains the core domain models for the loanvoice flow engine.

It defines the fundamental entities of the conversation state machine: Nodes,
Transitions, and the per-call Session. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Node: a single stage of the scripted conversation with fixed prompt
    content and a fixed set of outgoing transitions.
  - Transition: a named, driver-invocable action with a declared parameter
    schema; its handler mutates session state and selects the next node.
  - Session: the per-call mutable state bag and current-node pointer,
    ephemeral for the call's duration.
  - Snapshot: the read-only view of a session published to observers
    (dashboard, metrics).
*/
package domain
