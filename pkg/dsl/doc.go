/*
Package dsl provides a fluent builder for flow definitions.

It is the programmatic counterpart of the YAML format: embedders and tests can
declare flows, states, accepted entities and requirements in Go and link them
into a flow.Registry without a file on disk.

	b := dsl.New()
	b.Flow("default").Intents("greeting").
		State("root").Say("Hi! What is your name?").Accepts("name")
	b.Flow("billing").
		State("collect_amount").
		Accepts("amount").
		Requires("email", dsl.Say("What is your e-mail?")).
		Do(chargeCard)
	registry, err := b.Build()
*/
package dsl
