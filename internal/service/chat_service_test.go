package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChatService_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	env.user(t, "alice")

	for _, token := range []string{"garbage", "token-ghost"} {
		t.Run(token, func(t *testing.T) {
			conn := newFakeConn()
			rejected := testutil.ToFloat64(metrics.ChatSessionsRejected)
			err := env.chat.Serve(context.Background(), conn, token)

			if !errors.Is(err, ErrAuthFailed) {
				t.Errorf("Serve error = %v, want ErrAuthFailed", err)
			}
			closed, code := conn.CloseCode()
			if !closed || code != hub.ClosePolicyViolation {
				t.Errorf("closed = %v code = %d, want policy violation", closed, code)
			}
			if env.registry.Count() != 0 {
				t.Errorf("registry has %d entries after rejected connect", env.registry.Count())
			}
			if got := testutil.ToFloat64(metrics.ChatSessionsRejected) - rejected; got != 1 {
				t.Errorf("rejected sessions delta = %v, want 1", got)
			}
		})
	}
}

func TestChatService_AssignsChatColorOnce(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	env.user(t, "alice")
	ctx := context.Background()

	first, err := env.chat.Authenticate(ctx, "token-alice")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !regexp.MustCompile(`^#[0-9a-f]{6}$`).MatchString(first.ChatColor) {
		t.Fatalf("ChatColor = %q, want #rrggbb", first.ChatColor)
	}

	env.chat.newColor = func() string { return "#000000" }
	second, err := env.chat.Authenticate(ctx, "token-alice")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if second.ChatColor != first.ChatColor {
		t.Errorf("color changed from %q to %q", first.ChatColor, second.ChatColor)
	}
}

func TestChatService_KeepsExistingColor(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	bob := env.user(t, "bob")
	if err := env.db.Model(&bob).Update("chat_color", "#3b82f6").Error; err != nil {
		t.Fatal(err)
	}

	got, err := env.chat.Authenticate(context.Background(), "token-bob")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ChatColor != "#3b82f6" {
		t.Errorf("ChatColor = %q, want #3b82f6", got.ChatColor)
	}
}

func TestChatService_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	alice, bob := env.user(t, "alice"), env.user(t, "bob")

	ca, aliceDone := env.serve(t, "token-alice", alice.ID)
	cb, bobDone := env.serve(t, "token-bob", bob.ID)

	ca.inbox <- []byte(`{"content":"hi all"}`)
	for _, c := range []*fakeConn{ca, cb} {
		if got := c.next(t); got.Content != "hi all" || got.UserID != alice.ID || got.Sender.ChatColor == "" {
			t.Errorf("got %+v", got)
		}
	}

	// Bob leaves; a private message to him is stored and only echoed.
	close(cb.inbox)
	if err := waitResult(t, bobDone); err != nil {
		t.Errorf("bob's session ended with %v, want nil", err)
	}
	if _, ok := env.registry.Lookup(bob.ID); ok {
		t.Error("bob still registered after disconnect")
	}

	ca.inbox <- []byte(`{"content":"you there?","to_user_id":` + itoa(bob.ID) + `}`)
	if got := ca.next(t); got.ToUserID == nil || *got.ToUserID != bob.ID {
		t.Errorf("echo = %+v", got)
	}

	history, err := env.history.PrivateHistory(context.Background(), alice.ID, bob.ID, 0, 10)
	if err != nil {
		t.Fatalf("PrivateHistory: %v", err)
	}
	if len(history) != 1 || history[0].Content != "you there?" {
		t.Errorf("history = %+v", history)
	}

	close(ca.inbox)
	if err := waitResult(t, aliceDone); err != nil {
		t.Errorf("alice's session ended with %v, want nil", err)
	}
	if env.registry.Count() != 0 {
		t.Errorf("registry count = %d, want 0", env.registry.Count())
	}
}

func TestChatService_PersistFailureKeepsSessionOpen(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	alice := env.user(t, "alice")

	ca, done := env.serve(t, "token-alice", alice.ID)

	env.messages.setFail(true)
	ca.inbox <- []byte("first")
	if got := ca.next(t); got.ID != 0 {
		t.Errorf("expected an error frame, got envelope %+v", got)
	}

	env.messages.setFail(false)
	ca.inbox <- []byte("second")
	if got := ca.next(t); got.Content != "second" || got.ID == 0 {
		t.Errorf("got %+v, want stored message", got)
	}

	close(ca.inbox)
	waitResult(t, done)
}

func TestChatService_InvalidRecipientIsNotBroadcast(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	alice, bob, carol := env.user(t, "alice"), env.user(t, "bob"), env.user(t, "carol")

	ca, aliceDone := env.serve(t, "token-alice", alice.ID)
	cb, bobDone := env.serve(t, "token-bob", bob.ID)
	cc, carolDone := env.serve(t, "token-carol", carol.ID)

	ca.inbox <- []byte(`{"content":"secret","to_user_id":-3}`)
	select {
	case raw := <-ca.out:
		var frame ErrorFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if frame.Type != "error" || frame.Error != ErrInvalidRecipient.Error() {
			t.Errorf("error frame = %+v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the error frame")
	}

	// A numeric string still addresses bob privately.
	ca.inbox <- []byte(`{"content":"secret","to_user_id":"` + itoa(bob.ID) + `"}`)
	for name, c := range map[string]*fakeConn{"alice": ca, "bob": cb} {
		got := c.next(t)
		if got.Content != "secret" || got.ToUserID == nil || *got.ToUserID != bob.ID {
			t.Errorf("%s got %+v, want private message to bob", name, got)
		}
	}
	cc.expectNothing(t)

	history, err := env.history.LobbyHistory(context.Background(), 0, 50)
	if err != nil {
		t.Fatalf("LobbyHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("lobby history = %+v, want empty", history)
	}

	for _, c := range []struct {
		conn *fakeConn
		done <-chan error
	}{{ca, aliceDone}, {cb, bobDone}, {cc, carolDone}} {
		close(c.conn.inbox)
		waitResult(t, c.done)
	}
}

func TestChatService_SupersededSessionGetsItsOwnEcho(t *testing.T) {
	env := newTestEnv(t, ChatOptions{})
	alice, bob := env.user(t, "alice"), env.user(t, "bob")

	stale, staleDone := env.serve(t, "token-alice", alice.ID)
	current, currentDone := env.serve(t, "token-alice", alice.ID)
	cb, bobDone := env.serve(t, "token-bob", bob.ID)

	stale.inbox <- []byte(`{"content":"from the old tab","to_user_id":` + itoa(bob.ID) + `}`)
	if got := stale.next(t); got.Content != "from the old tab" {
		t.Errorf("stale session got %+v, want its own echo", got)
	}
	if got := cb.next(t); got.Content != "from the old tab" {
		t.Errorf("bob got %+v", got)
	}
	current.expectNothing(t)

	for _, c := range []struct {
		conn *fakeConn
		done <-chan error
	}{{stale, staleDone}, {current, currentDone}, {cb, bobDone}} {
		close(c.conn.inbox)
		waitResult(t, c.done)
	}
}

func TestChatService_Reconnect(t *testing.T) {
	for _, closeSuperseded := range []bool{false, true} {
		name := "linger"
		if closeSuperseded {
			name = "close superseded"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, ChatOptions{CloseSuperseded: closeSuperseded})
			alice := env.user(t, "alice")

			first, firstDone := env.serve(t, "token-alice", alice.ID)
			second, secondDone := env.serve(t, "token-alice", alice.ID)

			// The stale session ending must not evict the new one.
			if closeSuperseded {
				waitResult(t, firstDone)
				if closed, code := first.CloseCode(); !closed || code != hub.ClosePolicyViolation {
					t.Errorf("first connection closed = %v code = %d, want policy violation", closed, code)
				}
			} else {
				if closed, _ := first.CloseCode(); closed {
					t.Error("first connection should linger until it disconnects")
				}
				close(first.inbox)
				waitResult(t, firstDone)
			}
			if ch, ok := env.registry.Lookup(alice.ID); !ok || ch != hub.Channel(second) {
				t.Fatal("new session was evicted by the old one's disconnect")
			}

			close(second.inbox)
			waitResult(t, secondDone)
			if env.registry.Count() != 0 {
				t.Errorf("registry count = %d, want 0", env.registry.Count())
			}
		})
	}
}
