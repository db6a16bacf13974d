package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	doc  map[string]interface{}
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Extract(context.Context, Request) (map[string]interface{}, error) {
	return f.doc, f.err
}

func sampleDoc(summary string) map[string]interface{} {
	return map[string]interface{}{
		"summary": summary,
		"status":  map[string]interface{}{"name": "interfaces", "value": "up"},
	}
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	chain := NewChain(nil,
		&fakeProvider{name: "parser", err: ErrNotAvailable},
		&fakeProvider{name: "mcp", err: errors.New("server down")},
		&fakeProvider{name: "llm", doc: sampleDoc("from llm")},
	)

	doc, source, err := chain.Extract(context.Background(), Request{Host: "r1", CmdKey: "show_version"})
	require.NoError(t, err)
	assert.Equal(t, "llm", source)
	assert.Equal(t, "from llm", doc["summary"])
}

func TestChainSkipsEmptyDocuments(t *testing.T) {
	chain := NewChain(nil,
		&fakeProvider{name: "parser", doc: map[string]interface{}{}},
		&fakeProvider{name: "llm", doc: sampleDoc("fallback")},
	)

	doc, source, err := chain.Extract(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "llm", source)
	assert.Equal(t, "fallback", doc["summary"])
}

func TestChainEarlierTierShadowsLater(t *testing.T) {
	chain := NewChain(nil,
		&fakeProvider{name: "parser", doc: sampleDoc("deterministic")},
		&fakeProvider{name: "llm", doc: sampleDoc("never reached")},
	)

	doc, source, err := chain.Extract(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "parser", source)
	assert.Equal(t, "deterministic", doc["summary"])
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain(nil,
		&fakeProvider{name: "parser", err: ErrNotAvailable},
		&fakeProvider{name: "llm", err: errors.New("no json")},
	)

	_, _, err := chain.Extract(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrExhausted)

	empty := NewChain(nil)
	_, _, err = empty.Extract(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestChainHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain(nil, &fakeProvider{name: "parser", doc: sampleDoc("x")})
	_, _, err := chain.Extract(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainProviders(t *testing.T) {
	chain := NewChain(nil,
		&fakeProvider{name: "parser"},
		nil,
		&fakeProvider{name: "llm"},
	)
	assert.Equal(t, []string{"parser", "llm"}, chain.Providers())
}

func TestSharedShape(t *testing.T) {
	assert.True(t, sharedShape(sampleDoc("ok")))
	assert.False(t, sharedShape(map[string]interface{}{"summary": "no status"}))
	assert.False(t, sharedShape(map[string]interface{}{
		"summary": "scalar status",
		"status":  "up",
	}))
	assert.False(t, sharedShape(map[string]interface{}{
		"summary": "status without value",
		"status":  map[string]interface{}{"name": "interfaces"},
	}))
}
