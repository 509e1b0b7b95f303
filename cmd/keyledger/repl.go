package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
)

// submitter is the slice of the command dispatcher the console needs.
type submitter interface {
	Submit(ctx context.Context, session prompt.Session, text string)
}

// console is a chat session bound to a terminal. Replies may arrive from
// command goroutines, so writes are serialised.
type console struct {
	identity string
	in       io.Reader

	mu  sync.Mutex
	out io.Writer
}

func newConsole(identity string, in io.Reader, out io.Writer) *console {
	return &console{identity: identity, in: in, out: out}
}

func (c *console) Identity() string { return c.identity }

func (c *console) Reply(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s\n", text)
	return err
}

// Run feeds each non-empty input line to the dispatcher until the input ends
// or ctx is cancelled.
func (c *console) Run(ctx context.Context, commands submitter) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if text := strings.TrimSpace(line); text != "" {
				commands.Submit(ctx, c, text)
			}
		}
	}
}
