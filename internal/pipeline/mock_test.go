package pipeline

import (
	"context"
	"sync"

	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/pkg/anthropic"
	"github.com/sells-group/profile-enrich/pkg/jina"
)

// mockAnthropic returns queued responses in order, or a fixed error.
type mockAnthropic struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []anthropic.MessageRequest
}

func (m *mockAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	text := "[]"
	if len(m.responses) > 0 {
		text = m.responses[0]
		m.responses = m.responses[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

// mockSearch serves canned search results per query and records Read calls.
type mockSearch struct {
	results map[string][]jina.SearchResult
	readErr error
	pages   map[string]jina.ReadData
}

func (m *mockSearch) Search(_ context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	return &jina.SearchResponse{Code: 200, Data: m.results[query]}, nil
}

func (m *mockSearch) Read(_ context.Context, targetURL string) (*jina.ReadResponse, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.pages[targetURL]
	if !ok {
		return &jina.ReadResponse{Code: 200}, nil
	}
	return &jina.ReadResponse{Code: 200, Data: data}, nil
}

func sourceFor(url string, tier model.SourceTier) model.Source {
	return model.Source{
		URL:         url,
		Tier:        tier,
		TrustWeight: model.TrustWeights[tier],
		Platform:    model.PlatformWebsite,
	}
}
