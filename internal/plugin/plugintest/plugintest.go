// Package plugintest provides an in-memory transport adapter and harness for
// exercising plugins through the real router.
package plugintest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quotebot/internal/plugin"
	kit "quotebot/internal/transport"
	"quotebot/internal/transport/telegram/router"
	logx "quotebot/pkg/logx"
)

// Call is one recorded adapter call.
type Call struct {
	Kind       string // "send", "edit" or "answer"
	To         kit.ChatTarget
	MessageID  int
	Text       string
	Opt        *kit.SendOptions
	CallbackID string
}

// Adapter records outgoing calls. SendFail makes SendText fail for a chat.
type Adapter struct {
	mu       sync.Mutex
	calls    []Call
	nextID   int
	SendFail map[int64]error
	ch       chan Call
}

func NewAdapter() *Adapter {
	return &Adapter{ch: make(chan Call, 256), SendFail: map[int64]error{}}
}

func (a *Adapter) record(c Call) {
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()
	a.ch <- c
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error                         { return nil }

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	err := a.SendFail[to.ChatID]
	a.nextID++
	id := a.nextID
	a.mu.Unlock()
	if err != nil {
		return kit.MessageRef{}, err
	}
	a.record(Call{Kind: "send", To: to, MessageID: id, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: id}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.record(Call{Kind: "edit", To: kit.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}, MessageID: ref.MessageID, Text: text, Opt: opt})
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, id, text string) error {
	a.record(Call{Kind: "answer", CallbackID: id, Text: text})
	return nil
}

// Next waits for the next recorded call.
func (a *Adapter) Next(t *testing.T) Call {
	t.Helper()
	select {
	case c := <-a.ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no adapter call")
		return Call{}
	}
}

// Calls returns every recorded call so far.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// Harness runs plugins behind a live router.
type Harness struct {
	Adapter *Adapter
	Router  *router.CommandManager
	Plugins *plugin.Manager
	updates chan kit.Update
}

// Start wires deps (Adapter and Logger are filled in), starts ps and a
// dispatch loop. Everything is stopped on test cleanup.
func Start(t *testing.T, deps plugin.Deps, owners []int64, ps ...plugin.Plugin) *Harness {
	t.Helper()
	h := &Harness{Adapter: NewAdapter(), updates: make(chan kit.Update, 16)}
	deps.Adapter = h.Adapter
	if deps.Logger.IsZero() {
		deps.Logger = logx.Nop()
	}
	h.Router = router.NewCommandManager(deps.Logger, h.Adapter, router.Options{Owners: owners, Workers: 1})
	h.Plugins = plugin.NewManager(deps.Logger, deps, h.Router)
	h.Plugins.Register(ps...)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Plugins.StartAll(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Router.DispatchLoop(ctx, h.updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		_ = h.Plugins.StopAll(sctx)
	})
	return h
}

// Command delivers a text message from user in chat.
func (h *Harness) Command(chatID, from int64, text string) {
	h.updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: chatID, FromID: from, FromUsername: "tester", Text: text}}
}

// Press delivers a callback for data on message msgID.
func (h *Harness) Press(chatID, from int64, msgID int, id, data string) {
	h.updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: id, ChatID: chatID, FromID: from, FromUsername: "tester", MessageID: msgID, Data: data}}
}
