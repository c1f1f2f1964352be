/*
Package ports defines the driven ports (interfaces) of the golem dialog engine.

These interfaces decouple the engine from its collaborators, so it can run on
different storage backends, chat channels, extractors and schedulers.

# Key Interfaces

  - SessionStore: persists the per-session Record (state pointer, context, channel).
  - DistributedLocker: serialises turns of one session across replicas.
  - Channel: delivers outbound messages and receives processing notifications.
  - EntityExtractor: turns a raw inbound payload into named entities.
  - Scheduler: re-delivers a session to a callback state at a future time.
  - TurnLogger: records processed turns and bot messages for analytics.
  - Recorder: captures conversations as replayable test transcripts.
*/
package ports
