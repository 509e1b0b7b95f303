package commands

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/interest"
	"github.com/R3E-Network/keyledger/internal/app/services/invest"
	"github.com/R3E-Network/keyledger/internal/app/services/keys"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
	"github.com/R3E-Network/keyledger/internal/app/services/wagering"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// Limiter throttles commands per identity.
type Limiter interface {
	Allow(caller string) error
}

// Services are the engines a Dispatcher drives.
type Services struct {
	Keys     *keys.Registry
	Ledger   *ledger.Service
	Interest *interest.Service
	Invest   *invest.Service
	Wagering *wagering.Engine
	Prompts  *prompt.Controller
}

// call is one command invocation. key is set for commands that need a login.
type call struct {
	session prompt.Session
	key     string
	args    []string
}

type handler struct {
	needsKey bool
	run      func(ctx context.Context, c call) (string, error)
}

// Dispatcher routes chat text from sessions to the engines.
type Dispatcher struct {
	svc      Services
	limiter  Limiter
	handlers map[Name]handler
	loc      *time.Location
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewDispatcher builds a dispatcher. limiter may be nil.
func NewDispatcher(svc Services, limiter Limiter, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("commands")
	}
	d := &Dispatcher{svc: svc, limiter: limiter, log: log}
	d.handlers = map[Name]handler{
		Login:            {run: d.login},
		GenerateKey:      {run: d.generateKey},
		ViewKey:          {needsKey: true, run: d.viewKey},
		Help:             {run: d.help},
		SignIn:           {needsKey: true, run: d.signIn},
		MyPoints:         {needsKey: true, run: d.myPoints},
		History:          {needsKey: true, run: d.history},
		Deposit:          {needsKey: true, run: d.deposit},
		ViewDeposits:     {needsKey: true, run: d.viewDeposits},
		WithdrawDeposits: {needsKey: true, run: d.withdrawDeposits},
		Transfer:         {needsKey: true, run: d.transfer},
		DrawCard:         {needsKey: true, run: d.drawCard},
		ThreeFlowers:     {needsKey: true, run: d.play(wagering.ThreeFlowers{})},
		GamblingFlowers:  {needsKey: true, run: d.play(wagering.GamblingFlowers{})},
		TwentyOne:        {needsKey: true, run: d.play(wagering.TwentyOne{})},
		Invest:           {needsKey: true, run: d.buy},
		ViewInvestments:  {needsKey: true, run: d.viewInvestments},
		ViewPurchasable:  {needsKey: true, run: d.viewPurchasable},
		Sell:             {needsKey: true, run: d.sell},
	}
	return d
}

// WithLocation sets the zone used to print timestamps.
func (d *Dispatcher) WithLocation(loc *time.Location) *Dispatcher {
	d.loc = loc
	return d
}

func (d *Dispatcher) location() *time.Location {
	if d.loc == nil {
		return time.UTC
	}
	return d.loc
}

// Submit handles one inbound message without blocking the caller. Text is
// first offered to the identity's outstanding prompt; anything else runs as
// a command on its own goroutine so the transport can keep reading answers.
func (d *Dispatcher) Submit(ctx context.Context, session prompt.Session, text string) {
	if d.svc.Prompts != nil {
		if d.svc.Prompts.Deliver(ctx, session.Identity(), text) != prompt.NotWaiting {
			return
		}
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Execute(ctx, session, text); err != nil {
			d.log.WithError(err).WithField("identity", session.Identity()).Warn("reply failed")
		}
	}()
}

// Wait blocks until every command started by Submit has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Execute runs text as a command and sends the reply. The returned error is
// only a transport failure; command errors become replies.
func (d *Dispatcher) Execute(ctx context.Context, session prompt.Session, text string) error {
	reply, name, err := d.run(ctx, session, text)
	if err != nil {
		reply = Message(err, name)
	}
	metrics.RecordCommand(string(name), resultOf(err))
	if reply == "" {
		return nil
	}
	return session.Reply(ctx, reply)
}

func (d *Dispatcher) run(ctx context.Context, session prompt.Session, text string) (string, Name, error) {
	identity := session.Identity()
	if d.limiter != nil {
		if err := d.limiter.Allow(identity); err != nil {
			return "", "", err
		}
	}

	cmd, err := Parse(text)
	if err != nil {
		return "", cmd.Name, err
	}
	h := d.handlers[cmd.Name]

	c := call{session: session, args: cmd.Args}
	if h.needsKey {
		key, ok, err := d.svc.Keys.LookupKey(ctx, identity)
		if err != nil {
			return "", cmd.Name, err
		}
		if !ok {
			return "", cmd.Name, svcerrors.NotAuthenticated(identity)
		}
		c.key = key
	}

	reply, err := h.run(ctx, c)
	if c.key != "" && retired(err, c.key) {
		err = svcerrors.NotAuthenticated(identity).WithDetails("retired", c.key)
	}
	if err != nil {
		d.log.WithField("identity", identity).
			WithField("command", string(cmd.Name)).
			WithField("code", string(svcerrors.CodeOf(err))).
			Debug("command failed")
	}
	return reply, cmd.Name, err
}

// retired reports whether err says key itself was retired mid-command, as
// opposed to some other key named in the arguments.
func retired(err error, key string) bool {
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil || svcErr.Code != svcerrors.CodeInvalidKey {
		return false
	}
	return svcErr.Details["key"] == key
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown"
	default:
		return string(svcerrors.CodeOf(err))
	}
}
