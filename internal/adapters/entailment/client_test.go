package entailment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/longregen/cogito/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScoreBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Pairs) != 2 {
			t.Errorf("expected 2 pairs, got %d", len(req.Pairs))
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.92, 0.13}})
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())
	scores, err := client.ScoreBatch(context.Background(), []ports.EntailmentPair{
		{Premise: "The sky is blue today.", Hypothesis: "The sky is blue."},
		{Premise: "The sky is blue today.", Hypothesis: "It is raining."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.92 || scores[1] != 0.13 {
		t.Errorf("unexpected scores: %v", scores)
	}
}

func TestScoreSinglePair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.7}})
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())
	score, err := client.Score(context.Background(), "premise", "hypothesis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.7 {
		t.Errorf("unexpected score %f", score)
	}
}

func TestScoreBatchCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())
	_, err := client.ScoreBatch(context.Background(), []ports.EntailmentPair{
		{Premise: "a", Hypothesis: "b"},
		{Premise: "c", Hypothesis: "d"},
	})
	if err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestScoreBatchOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1.4}})
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())
	_, err := client.ScoreBatch(context.Background(), []ports.EntailmentPair{{Premise: "a", Hypothesis: "b"}})
	if err == nil {
		t.Error("expected out of range error")
	}
}

func TestScoreBatchEmpty(t *testing.T) {
	client := NewClient("http://localhost:1", discardLogger())
	scores, err := client.ScoreBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %v", scores)
	}
}
