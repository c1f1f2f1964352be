/*
Package golem is a dialog state-machine engine for building chat bots.

Conversations are described as flows: named groups of states, each with an action,
optional requirements and the entities it accepts. For every inbound event the engine
resolves the next state, runs its action and persists the session, one turn at a time per session.

# Concept

The engine keeps a per-session context of entities that age with every processed turn.
Transitions follow a fixed precedence:

  - An explicit "_state" override set in this turn.
  - An intent handled by the current flow, or declared by another flow.
  - Entities accepted by the current state, which re-run it in place.
  - The root of the current flow, or the root of the default flow.

A state whose requirements are not met runs the remediation action of the first unmet one
instead of its own. Failing actions are contained: the turn still persists and the user
gets a single apology.

Persistence, channels, entity extraction and scheduling are ports, so the same bot runs
from a terminal, an HTTP server or an MCP client, on memory, Redis or SQLite.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/golem"
		"github.com/aretw0/golem/pkg/domain"
		"github.com/aretw0/golem/pkg/dsl"
	)

	func main() {
		flows, err := dsl.New().
			Flow("default").
			State("root").Say("Hi! Ask me about your bill.").
			Flow("billing").Intents("billing").
			State("root").Say("Your balance is zero.").
			Build()
		if err != nil {
			log.Fatal(err)
		}

		bot, err := golem.New(flows)
		if err != nil {
			log.Fatal(err)
		}

		out, err := bot.Send(context.Background(), "cli_1", map[string]any{domain.EntityIntent: "billing"})
		if err != nil {
			log.Fatal(err)
		}
		for _, msg := range out.Messages {
			log.Println(msg.Text)
		}
	}

Flows can also be loaded from YAML (flow.ParseYAML) or from a directory of
Markdown state documents (FromDirectory).
*/
package golem
