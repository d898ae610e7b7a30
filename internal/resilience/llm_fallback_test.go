package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voicememo/pkg/provider/llm"
	llmmock "github.com/MrWong99/voicememo/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Budget Review"}}

	fb := NewLLMFallback(primary, "openai", FallbackConfig{})
	fb.AddFallback("ollama", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{MaxTokens: 20})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Budget Review" {
		t.Errorf("Content = %q", resp.Content)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
	if secondary.CompleteCalls[0].Req.MaxTokens != 20 {
		t.Error("request not forwarded unchanged")
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("boom")}, "only", FallbackConfig{})
	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
