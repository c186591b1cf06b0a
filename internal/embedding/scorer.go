package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parchmentlabs/recall/internal/domain"
)

// LocalScorer rates query/text relevance through a local model server
// (Ollama-compatible /api/generate). Like the local embedding tier, it
// only ever dials loopback.
type LocalScorer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewLocalScorer(baseURL, model string) *LocalScorer {
	return &LocalScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: loopbackOnlyClient(60 * time.Second),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Score asks the model to rate relevance on [0,1]. Query and text go
// through the model together, so the score reflects their interaction,
// not just the text alone.
func (s *LocalScorer) Score(ctx context.Context, query, text string) (float64, error) {
	prompt := "Rate the relevance of the following text to the query on a scale of 0.0 to 1.0.\n" +
		"Query: " + query + "\n" +
		"Text: " + text + "\n" +
		`Respond with only a JSON object: {"score": <float>}`

	body, err := json.Marshal(generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", domain.ErrScorerUnavailable, resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding score response: %w", err)
	}
	return parseScore(result.Response)
}

// parseScore extracts {"score": <float>} from a model response. Small
// local models frequently wrap JSON in markdown fences or prepend
// conversational filler.
func parseScore(resp string) (float64, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("no JSON object in response")
	}

	var obj struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("unmarshal score: %w", err)
	}
	return obj.Score, nil
}
