// Package prompt collects one follow-up answer from the identity that started
// an interactive flow. A prompt is a suspend point: callers must not hold any
// key lock while waiting on Ask.
package prompt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/keyledger/internal/app/metrics"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// DefaultTimeout bounds the wait for an answer.
const DefaultTimeout = 30 * time.Second

// Session is the reply channel of one identity's conversation.
type Session interface {
	Identity() string
	Reply(ctx context.Context, text string) error
}

// Kind tags the outcome of Ask.
type Kind int

const (
	Answered Kind = iota
	TimedOut
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Answered:
		return "answered"
	case TimedOut:
		return "timed_out"
	default:
		return "cancelled"
	}
}

// Result is the tagged outcome of a prompt. Answer is the parsed value and is
// only set when Kind is Answered.
type Result struct {
	Kind   Kind
	Answer string
}

// Request describes one question.
type Request struct {
	Key      string
	Question string
	// Retry is sent when Parse rejects an answer; the deadline is not extended.
	Retry string
	// Parse normalises an answer. Nil accepts any non-empty text.
	Parse   func(text string) (string, bool)
	Timeout time.Duration
}

// Delivery reports what Deliver did with an inbound message.
type Delivery int

const (
	NotWaiting Delivery = iota
	Accepted
	Retry
)

type pending struct {
	key     string
	session Session
	parse   func(string) (string, bool)
	retry   string
	done    chan string
}

// Controller tracks outstanding prompts. At most one prompt per key may be
// outstanding.
type Controller struct {
	mu         sync.Mutex
	byKey      map[string]*pending
	byIdentity map[string]*pending
	timeout    time.Duration
	log        *logger.Logger
}

func NewController(timeout time.Duration, log *logger.Logger) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("prompt")
	}
	return &Controller{
		byKey:      make(map[string]*pending),
		byIdentity: make(map[string]*pending),
		timeout:    timeout,
		log:        log,
	}
}

// Ask sends the question and waits for a valid answer, the timeout or ctx.
// It fails with PROMPT_PENDING when req.Key already has a prompt outstanding.
func (c *Controller) Ask(ctx context.Context, session Session, req Request) (Result, error) {
	p := &pending{
		key:     req.Key,
		session: session,
		parse:   req.Parse,
		retry:   req.Retry,
		done:    make(chan string, 1),
	}
	if p.parse == nil {
		p.parse = acceptNonEmpty
	}
	if err := c.register(p); err != nil {
		return Result{}, err
	}

	if err := session.Reply(ctx, req.Question); err != nil {
		c.unregister(p)
		return Result{}, svcerrors.Internal("send prompt", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res Result
	select {
	case answer := <-p.done:
		res = Result{Kind: Answered, Answer: answer}
	case <-timer.C:
		res = c.expire(p, TimedOut)
	case <-ctx.Done():
		res = c.expire(p, Cancelled)
	}

	metrics.RecordPrompt(res.Kind.String())
	c.log.WithField("key", p.key).
		WithField("identity", session.Identity()).
		WithField("result", res.Kind.String()).
		Debug("prompt finished")
	return res, nil
}

// Deliver routes text from identity to its outstanding prompt, if any.
func (c *Controller) Deliver(ctx context.Context, identity, text string) Delivery {
	c.mu.Lock()
	p, ok := c.byIdentity[identity]
	if !ok {
		c.mu.Unlock()
		return NotWaiting
	}
	answer, valid := p.parse(strings.TrimSpace(text))
	if !valid {
		c.mu.Unlock()
		if p.retry != "" {
			if err := p.session.Reply(ctx, p.retry); err != nil {
				c.log.WithError(err).WithField("identity", identity).Warn("send retry hint failed")
			}
		}
		return Retry
	}
	c.removeLocked(p)
	c.mu.Unlock()

	p.done <- answer
	return Accepted
}

// Pending reports whether key has an outstanding prompt.
func (c *Controller) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byKey[key]
	return ok
}

// Waiting reports whether identity has an outstanding prompt.
func (c *Controller) Waiting(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byIdentity[identity]
	return ok
}

func (c *Controller) register(p *pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.byKey[p.key]; busy {
		return svcerrors.PromptPending(p.key)
	}
	if _, busy := c.byIdentity[p.session.Identity()]; busy {
		return svcerrors.PromptPending(p.key)
	}
	c.byKey[p.key] = p
	c.byIdentity[p.session.Identity()] = p
	return nil
}

func (c *Controller) unregister(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(p)
}

// expire removes p unless Deliver already did, in which case the answer wins.
func (c *Controller) expire(p *pending, kind Kind) Result {
	c.mu.Lock()
	if c.byKey[p.key] == p {
		c.removeLocked(p)
		c.mu.Unlock()
		return Result{Kind: kind}
	}
	c.mu.Unlock()
	return Result{Kind: Answered, Answer: <-p.done}
}

func (c *Controller) removeLocked(p *pending) {
	if c.byKey[p.key] == p {
		delete(c.byKey, p.key)
	}
	if id := p.session.Identity(); c.byIdentity[id] == p {
		delete(c.byIdentity, id)
	}
}

func acceptNonEmpty(text string) (string, bool) {
	return text, text != ""
}

// Answers accepted by ParseYesNo.
const (
	Yes = "yes"
	No  = "no"
)

// ParseYesNo accepts yes/no in English or Chinese.
func ParseYesNo(text string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "是":
		return Yes, true
	case "no", "n", "否":
		return No, true
	default:
		return "", false
	}
}
