package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"sunnyside/internal/domain"
)

const maxTitleRunes = 80

type httpInterpreter struct {
	client *http.Client
	url    string
	apiKey string
}

// NewHTTPInterpreter returns an interpreter that posts the text to the intent API at url.
func NewHTTPInterpreter(client *http.Client, url, apiKey string) domain.IntentInterpreter {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpInterpreter{client: client, url: url, apiKey: apiKey}
}

type interpretRequest struct {
	Text string `json:"text"`
}

func (i *httpInterpreter) Interpret(ctx context.Context, text string) (*domain.ActivityIntent, error) {
	body, err := json.Marshal(interpretRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode intent request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call intent api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intent api returned status: %d", resp.StatusCode)
	}

	var out domain.ActivityIntent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = titleFromText(text)
	}
	return &out, nil
}

type passthroughInterpreter struct{}

// NewPassthroughInterpreter returns an interpreter that uses the text itself as the title.
// It is used when no intent API is configured.
func NewPassthroughInterpreter() domain.IntentInterpreter {
	return passthroughInterpreter{}
}

func (passthroughInterpreter) Interpret(_ context.Context, text string) (*domain.ActivityIntent, error) {
	return &domain.ActivityIntent{Title: titleFromText(text), Keywords: []string{}}, nil
}

// titleFromText collapses whitespace and truncates to maxTitleRunes.
func titleFromText(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	r := []rune(title)
	return strings.TrimSpace(string(r[:maxTitleRunes-1])) + "…"
}
