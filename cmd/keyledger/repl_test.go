package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSubmitter) Submit(ctx context.Context, session prompt.Session, text string) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	_ = session.Reply(ctx, "ok: "+text)
}

func TestConsoleRunSubmitsLines(t *testing.T) {
	var out bytes.Buffer
	c := newConsole("alice", strings.NewReader("help\n\n  my-points  \n"), &out)
	sub := &recordingSubmitter{}

	require.NoError(t, c.Run(context.Background(), sub))

	assert.Equal(t, []string{"help", "my-points"}, sub.texts)
	assert.Equal(t, "ok: help\nok: my-points\n", out.String())
	assert.Equal(t, "alice", c.Identity())
}

func TestConsoleRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader, writer := io.Pipe()
	defer writer.Close()

	c := newConsole("bob", reader, &bytes.Buffer{})
	assert.NoError(t, c.Run(ctx, &recordingSubmitter{}))
}
