package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
)

func TestLocalScorerScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "phi3.5", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		assert.Contains(t, req.Prompt, "Query: total revenue")
		assert.Contains(t, req.Prompt, "Text: the revenue table")

		json.NewEncoder(w).Encode(generateResponse{Response: `{"score": 0.83}`})
	}))
	defer srv.Close()

	s := NewLocalScorer(srv.URL, "phi3.5")
	score, err := s.Score(context.Background(), "total revenue", "the revenue table")
	require.NoError(t, err)
	assert.InDelta(t, 0.83, score, 1e-9)
}

func TestLocalScorerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewLocalScorer(srv.URL, "m")
	_, err := s.Score(context.Background(), "q", "t")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrScorerUnavailable)
}

func TestLocalScorerRefusesNonLoopback(t *testing.T) {
	s := NewLocalScorer("http://10.1.2.3:11434", "m")
	_, err := s.Score(context.Background(), "q", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing non-loopback")
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{"bare json", `{"score": 0.75}`, 0.75, false},
		{"surrounding whitespace", "  {\"score\": 0.5}\n", 0.5, false},
		{"markdown fence", "```json\n{\"score\": 0.9}\n```", 0.9, false},
		{"fence without language", "```\n{\"score\": 0.4}\n```", 0.4, false},
		{"conversational filler", `Sure! Here is the rating: {"score": 0.25}`, 0.25, false},
		{"zero score", `{"score": 0}`, 0, false},
		{"no json object", "the text is quite relevant", 0, true},
		{"malformed json", `{"score": }`, 0, true},
		{"empty response", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScore(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}
