package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"tbnt/backend/internal/auth"
	"tbnt/backend/internal/database/dbtest"
	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/models"
	"tbnt/backend/internal/repository"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

var errConnClosed = errors.New("use of closed network connection")

// fakeConn is an in-memory hub.Conn. Frames pushed with deliver are returned
// by Receive; everything sent to it lands in out.
type fakeConn struct {
	inbox chan []byte
	out   chan []byte
	done  chan struct{}

	mu        sync.Mutex
	closed    bool
	closeCode int
	failSend  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox: make(chan []byte, 16),
		out:   make(chan []byte, 64),
		done:  make(chan struct{}),
	}
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	if c.closed {
		return errConnClosed
	}
	c.out <- payload
	return nil
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case raw, ok := <-c.inbox:
		if !ok {
			return nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return raw, nil
	case <-c.done:
		return nil, errConnClosed
	}
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
		close(c.done)
	}
	return nil
}

func (c *fakeConn) CloseCode() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

// next waits for the next payload sent to c and decodes it as an envelope.
func (c *fakeConn) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case raw := <-c.out:
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope %s: %v", raw, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return Envelope{}
	}
}

// expectNothing fails if c received anything.
func (c *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case raw := <-c.out:
		t.Fatalf("unexpected message: %s", raw)
	default:
	}
}

// staticVerifier maps tokens straight to usernames.
type staticVerifier map[string]string

func (v staticVerifier) Verify(token string) (string, error) {
	if name, ok := v[token]; ok {
		return name, nil
	}
	return "", auth.ErrInvalidToken
}

// failingMessages wraps a MessageRepository and fails every Create while
// fail is set.
type failingMessages struct {
	repository.MessageRepository
	mu   sync.Mutex
	fail bool
}

func (f *failingMessages) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *failingMessages) Create(ctx context.Context, msg *models.ChatMessage) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.MessageRepository.Create(ctx, msg)
}

type testEnv struct {
	db       *gorm.DB
	users    *repository.GormUserRepository
	messages *failingMessages
	registry *hub.Registry
	router   *Router
	chat     *ChatService
	history  *HistoryService
}

func newTestEnv(t *testing.T, opts ChatOptions) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	users := repository.NewGormUserRepository(db)
	messages := &failingMessages{MessageRepository: repository.NewGormMessageRepository(db)}
	registry := hub.NewRegistry()
	router := NewRouter(messages, users, registry, 4)

	verifier := staticVerifier{}
	for _, name := range []string{"alice", "bob", "carol"} {
		verifier["token-"+name] = name
	}
	verifier["token-ghost"] = "ghost"

	return &testEnv{
		db:       db,
		users:    users,
		messages: messages,
		registry: registry,
		router:   router,
		chat:     NewChatService(verifier, users, registry, router, opts),
		history:  NewHistoryService(messages, users),
	}
}

func (e *testEnv) user(t *testing.T, name string) models.User {
	t.Helper()
	return dbtest.CreateUser(t, e.db, name)
}

// serve runs a session for token on a fresh fakeConn and waits until the
// user is registered. The returned channel yields Serve's result.
func (e *testEnv) serve(t *testing.T, token string, userID uint) (*fakeConn, <-chan error) {
	t.Helper()
	conn := newFakeConn()
	result := make(chan error, 1)
	go func() {
		result <- e.chat.Serve(context.Background(), conn, token)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if ch, ok := e.registry.Lookup(userID); ok && ch == hub.Channel(conn) {
			return conn, result
		}
		if time.Now().After(deadline) {
			t.Fatalf("user %d was never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
