package services_test

import (
	"context"
	"testing"

	"recap/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithRecordingID(context.Background(), 42)
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.RecordingIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("recording id = %d, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "transcribe" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}

func TestContextMissingValues(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.RecordingIDFromContext(ctx); ok {
		t.Fatal("expected no recording id")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage")
	}
	if services.WithStage(ctx, "") != ctx {
		t.Fatal("empty stage should not derive a new context")
	}
}
