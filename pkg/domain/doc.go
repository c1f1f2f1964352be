/*
Package domain contains the core models of the golem dialog engine.

It defines the per-session conversation Context (aged entities, turn counter and
visit history), the inbound Event and outbound Message shapes, the persisted
Record, transition Targets and the error taxonomy. The package is kept free of
I/O and persistence concerns so every adapter can depend on it.

# Key Entities

  - Context: counter, aged entities and history owned by exactly one session.
  - Entity: a named value with an age measured in processed turns.
  - Event: an inbound message, postback or scheduled wake-up.
  - Target: a transition request, either by state name or by history offset.
  - Record: the persisted session row (state pointer, context blob, channel).
*/
package domain
