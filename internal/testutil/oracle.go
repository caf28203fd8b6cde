package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by a ScriptedOracle with no replies left.
var ErrScriptExhausted = errors.New("scripted oracle: no replies left")

// Reply is one canned oracle answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedOracle answers prompts from a fixed list of replies, in order,
// and records every prompt it receives. It is safe for concurrent use.
type ScriptedOracle struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

// NewScriptedOracle returns an oracle that answers with texts in order.
func NewScriptedOracle(texts ...string) *ScriptedOracle {
	o := &ScriptedOracle{}
	for _, s := range texts {
		o.replies = append(o.replies, Reply{Text: s})
	}
	return o
}

// Then appends a reply.
func (o *ScriptedOracle) Then(r Reply) *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies = append(o.replies, r)
	return o
}

// Complete returns the next scripted reply.
func (o *ScriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(o.replies) == 0 {
		return "", ErrScriptExhausted
	}
	r := o.replies[0]
	o.replies = o.replies[1:]
	return r.Text, r.Err
}

// Prompts returns a copy of the prompts received so far.
func (o *ScriptedOracle) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}
