package extensions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

// mockMCPClient implements mcpClient for testing.
type mockMCPClient struct {
	tools   []mcp.Tool
	initErr error
	block   bool
	closed  bool
}

func (m *mockMCPClient) Initialize(ctx context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.initErr != nil {
		return nil, m.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: m.tools}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed = true
	return nil
}

type dialed struct {
	command string
	env     []string
	args    []string
}

func listerWith(c *mockMCPClient, timeout time.Duration, got *dialed) *ToolLister {
	l := NewToolLister(timeout, nil)
	l.dial = func(command string, env []string, args ...string) (mcpClient, error) {
		*got = dialed{command, env, args}
		return c, nil
	}
	return l
}

func TestListTools(t *testing.T) {
	client := &mockMCPClient{tools: []mcp.Tool{{Name: "scrape"}, {Name: "crawl"}}}
	var got dialed
	l := listerWith(client, time.Second, &got)

	names, err := l.ListTools(context.Background(), `{"command":"npx","args":["firecrawl-mcp"],"env":{"KEY":"v"}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"crawl", "scrape"}, names)
	assert.Equal(t, dialed{"npx", []string{"KEY=v"}, []string{"firecrawl-mcp"}}, got)
	assert.True(t, client.closed)
}

func TestListTools_Errors(t *testing.T) {
	var got dialed

	_, err := listerWith(&mockMCPClient{}, time.Second, &got).ListTools(context.Background(), `{"url":"https://mcp.example"}`)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	client := &mockMCPClient{initErr: errors.New("handshake failed")}
	_, err = listerWith(client, time.Second, &got).ListTools(context.Background(), `{"command":"x"}`)
	assert.ErrorContains(t, err, "initialize: handshake failed")
	assert.True(t, client.closed)

	_, err = listerWith(&mockMCPClient{block: true}, 10*time.Millisecond, &got).ListTools(context.Background(), `{"command":"x"}`)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}
