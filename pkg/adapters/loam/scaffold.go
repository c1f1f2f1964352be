package loam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/loam"
)

// Document is a state document to write: its id ("<flow>/<state>"), body and front matter.
type Document struct {
	ID   string
	Body string
	Meta StateMetadata
}

// Starter is the sample bot written by Scaffold: a greeting, a billing flow with
// a gated payment state and a help state reachable by intent.
var Starter = []Document{
	{
		ID:   "default/root",
		Body: "Hi! I can help with your **bill**. Say *bill* to start.",
		Meta: StateMetadata{FlowIntent: []string{"greeting"}},
	},
	{
		ID:   "default/help",
		Body: "Try *bill*, or pick a button.",
		Meta: StateMetadata{
			Intent: []string{"help"},
			Buttons: []domain.Button{
				{Title: "Billing", Payload: map[string]any{"intent": "billing"}},
			},
		},
	},
	{
		ID:   "billing/root",
		Body: "Your balance is 42. How much would you like to pay?",
		Meta: StateMetadata{FlowIntent: []string{"billing"}, Next: "pay"},
	},
	{
		ID:   "billing/pay",
		Body: "Thanks, payment received.",
		Meta: StateMetadata{
			Accept: []string{"amount"},
			Require: []map[string]any{
				{"entity": "amount", "max_age": 0, "action": map[string]any{"type": "text", "text": "How much?"}},
			},
		},
	},
}

// Scaffold writes docs into dir, creating it when needed. Existing documents with the same id are replaced.
func Scaffold(ctx context.Context, dir string, docs []Document) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return err
	}

	// No versioning: this is plain file generation.
	repo, err := loam.Init(absPath, loam.WithVersioning(false), loam.WithForceTemp(false))
	if err != nil {
		return fmt.Errorf("failed to initialize loam: %w", err)
	}
	typed := loam.NewTypedRepository[StateMetadata](repo)

	for _, doc := range docs {
		err := typed.Save(ctx, &loam.DocumentModel[StateMetadata]{
			ID:      doc.ID,
			Content: doc.Body,
			Data:    doc.Meta,
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", doc.ID, err)
		}
	}
	return nil
}
