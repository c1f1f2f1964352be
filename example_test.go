package golem_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/golem"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/dsl"
	"github.com/aretw0/golem/pkg/flow"
)

// ExampleNew builds a bot in memory and talks to it.
func ExampleNew() {
	flows, err := dsl.New().
		Flow("default").
		State("root").Say("Hello! Ask me about your bill.").
		Flow("billing").Intents("billing").
		State("root").Accepts("month").Do(func(ctx context.Context, d flow.Dialog) error {
		month, ok := d.Context().GetString("month", 0)
		if !ok {
			return d.Send(ctx, domain.TextMessage("Which month?"))
		}
		return d.Send(ctx, domain.TextMessage(month+" is paid."))
	}).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	bot, err := golem.New(flows)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for _, entities := range []map[string]any{
		{},
		{domain.EntityIntent: "billing"},
		{"month": "May"},
	} {
		out, err := bot.Send(ctx, "example_1", entities)
		if err != nil {
			log.Fatal(err)
		}
		for _, msg := range out.Messages {
			fmt.Println(msg.Text)
		}
	}
	// Output:
	// Hello! Ask me about your bill.
	// Which month?
	// May is paid.
}

// Example_yaml loads flows from YAML and jumps to a state with an explicit override.
func Example_yaml() {
	defs, err := flow.ParseYAML([]byte(`
default:
  states:
    root:
      action:
        text: Welcome back.
    help:
      action:
        text: How can I help?
`))
	if err != nil {
		log.Fatal(err)
	}
	flows, err := flow.Load(defs, nil)
	if err != nil {
		log.Fatal(err)
	}
	bot, err := golem.New(flows, golem.WithoutRecorder())
	if err != nil {
		log.Fatal(err)
	}

	out, err := bot.Send(context.Background(), "example_2", map[string]any{domain.EntityState: "help"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out.To, out.Messages[0].Text)
	// Output:
	// default.help How can I help?
}
