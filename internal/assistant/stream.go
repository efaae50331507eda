package assistant

import (
	"context"
	"strings"

	"github.com/Kerhoff/CartBot/internal/action"
	"github.com/Kerhoff/CartBot/internal/apperr"
)

// PartialAction is an action as the model is writing it. Any field may still
// be missing.
type PartialAction struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Amount *int   `json:"amount"`
}

// Partial is one snapshot of the model's structured reply. Each snapshot
// supersedes the previous one.
type Partial struct {
	Actions []PartialAction `json:"actions,omitempty"`
	Message string          `json:"message,omitempty"`
}

// PartialStream is a single-pass sequence of snapshots.
type PartialStream interface {
	Next() bool
	Current() Partial
	Err() error
	Close() error
}

// Model starts a structured completion for prompt.
type Model interface {
	Stream(ctx context.Context, prompt string) (PartialStream, error)
}

// Reply is the resolved outcome of one assistant request.
type Reply struct {
	Actions []action.Action
	Message string
}

type actionKey struct {
	name string
	kind string
}

// accumulator dedupes actions by (name, action), keeping the last amount
// seen for a key and the order in which keys first appeared. Names are
// compared as written, so entries differing only in case stay separate and
// the executor merges them.
type accumulator struct {
	order   []actionKey
	entries map[actionKey]action.Raw
	message string
}

func newAccumulator() *accumulator {
	return &accumulator{entries: make(map[actionKey]action.Raw)}
}

// observe records the settled actions of p. Inside an intermediate snapshot
// the last array element may still be growing, so only final snapshots
// contribute it.
func (a *accumulator) observe(p Partial, final bool) {
	settled := p.Actions
	if !final && len(settled) > 0 {
		settled = settled[:len(settled)-1]
	}
	for _, pa := range settled {
		key := actionKey{name: strings.TrimSpace(pa.Name), kind: strings.ToLower(strings.TrimSpace(pa.Action))}
		if _, ok := a.entries[key]; !ok {
			a.order = append(a.order, key)
		}
		a.entries[key] = action.Raw{Action: pa.Action, Name: pa.Name, Amount: pa.Amount}
	}
	if strings.TrimSpace(p.Message) != "" {
		a.message = p.Message
	}
}

func (a *accumulator) raws() []action.Raw {
	out := make([]action.Raw, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.entries[key])
	}
	return out
}

// Collect drains stream and resolves the final reply. onPartial, when set,
// sees every snapshot as it arrives; an error from it stops the stream. A
// stream failure is returned after the snapshots before it were delivered.
func Collect(stream PartialStream, onPartial func(Partial) error) (*Reply, error) {
	acc := newAccumulator()

	var last Partial
	for stream.Next() {
		p := stream.Current()
		if onPartial != nil {
			if err := onPartial(p); err != nil {
				return nil, err
			}
		}
		acc.observe(p, false)
		last = p
	}
	if err := stream.Err(); err != nil {
		return nil, apperr.ErrAssistant.Wrap(err)
	}
	acc.observe(last, true)

	actions, err := action.ParseAll(acc.raws())
	if err != nil {
		return nil, apperr.ErrAssistant.
			WithMessage("the assistant proposed invalid actions: %s", apperr.MessageOf(err)).
			Wrap(err)
	}

	return &Reply{Actions: actions, Message: acc.message}, nil
}
