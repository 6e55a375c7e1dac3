package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/utils/vector"
	"github.com/m-mizutani/gt"
)

func TestGeminiEmbed(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1", adapter.WithDimension(256))
	gt.NoError(t, err)

	cat, err := client.Embed(ctx, "A cat is sleeping on the sofa")
	gt.NoError(t, err)
	gt.A(t, cat).Length(256)

	kitten, err := client.Embed(ctx, "A kitten naps on the couch")
	gt.NoError(t, err)

	tax, err := client.Embed(ctx, "Quarterly corporate tax filing deadline")
	gt.NoError(t, err)

	near, err := vector.Similarity(cat, kitten)
	gt.NoError(t, err)
	far, err := vector.Similarity(cat, tax)
	gt.NoError(t, err)
	gt.True(t, near > far)
}
