package approval

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/limiter"
)

const adminID int64 = 1

type sentMessage struct {
	ChatID int64
	Text   string
}

type closedRequest struct {
	MsgID int
	Text  string
}

type recordingNotifier struct {
	mu        sync.Mutex
	announced []access.PendingRequest
	sent      []sentMessage
	closed    []closedRequest
	nextMsgID int
	failAdmin error
}

func (n *recordingNotifier) NotifyAdmin(ctx context.Context, adminID int64, req access.PendingRequest) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAdmin != nil {
		return 0, n.failAdmin
	}
	n.nextMsgID++
	n.announced = append(n.announced, req)
	return 100 + n.nextMsgID, nil
}

func (n *recordingNotifier) Send(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) CloseRequest(ctx context.Context, adminID int64, msgID int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, closedRequest{MsgID: msgID, Text: text})
	return nil
}

func (n *recordingNotifier) announcements() []access.PendingRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]access.PendingRequest(nil), n.announced...)
}

func (n *recordingNotifier) sentTo(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type fixture struct {
	store    *access.MemoryStore
	notifier *recordingNotifier
	workflow *Workflow
	router   *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := access.NewMemoryStore()
	if err := store.SetAdmin(adminID); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}

	notifier := &recordingNotifier{}
	locks := &limiter.KeyedMutex{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		store:    store,
		notifier: notifier,
		workflow: NewWorkflow(store, notifier, adminID, locks, logger),
		router:   NewRouter(store, notifier, adminID, locks, logger),
	}
}

func actor(id int64) Actor {
	return Actor{ID: id, ChatID: id, Username: "user", FirstName: "User"}
}
