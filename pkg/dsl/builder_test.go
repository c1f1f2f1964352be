package dsl

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := New()

	b.Flow("default").
		State("root").Say("Hello, DSL!").Then("ask_name").
		State("ask_name").Say("What is your name?").Accepts("name")

	b.Flow("billing").Intents("pay").
		State("root").Do(func(ctx context.Context, d flow.Dialog) error { return nil }).
		State("collect_amount").
		Accepts("amount").
		Requires("email", Say("Your e-mail please")).
		RequiresFresh("otp", 0, Say("Type the code we sent"))

	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if reg.Default().Name != "default" {
		t.Errorf("Expected default flow 'default', got '%s'", reg.Default().Name)
	}

	root, ok := reg.State("default.root")
	if !ok {
		t.Fatal("default.root missing")
	}
	say, ok := root.Action.(flow.TextAction)
	if !ok {
		t.Fatalf("Expected TextAction, got %T", root.Action)
	}
	if say.Next != "ask_name" {
		t.Errorf("Expected next 'ask_name', got '%s'", say.Next)
	}

	billing, _ := reg.Flow("billing")
	if !billing.MatchesIntent("pay") {
		t.Error("Expected billing to match intent 'pay'")
	}

	collect, _ := reg.State("billing.collect_amount")
	if len(collect.Requirements) != 2 {
		t.Fatalf("Expected 2 requirements, got %d", len(collect.Requirements))
	}

	c := domain.NewContext()
	c.Set("email", "x@y.z")
	c.Set("otp", "1234")
	c.AddEntities(nil)
	if !collect.Requirements[0].Check(c) {
		t.Error("Expected email requirement to accept any age")
	}
	if collect.Requirements[1].Check(c) {
		t.Error("Expected otp requirement to reject age 1")
	}
}

func TestBuilder_MissingRoot(t *testing.T) {
	b := New()
	b.Flow("broken").State("orphan").Say("nobody gets here")

	_, err := b.Build()
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuilder_BuildEndsChain(t *testing.T) {
	reg, err := New().
		Flow("default").
		State("root").Say("Hi").
		Flow("orders").Intents("order").
		State("root").Say("Which order?").
		Build()
	if err != nil {
		t.Fatalf("StateBuilder.Build() failed: %v", err)
	}
	if _, ok := reg.State("orders.root"); !ok {
		t.Error("orders.root missing")
	}
	if reg.Default().Name != "default" {
		t.Errorf("Expected default flow 'default', got '%s'", reg.Default().Name)
	}

	if _, err := New().Flow("empty").Build(); err == nil {
		t.Error("FlowBuilder.Build() should reject a flow without root")
	}
}
