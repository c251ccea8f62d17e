package session

import (
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case msg := <-s.Events():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestJoinDeliverLeave(t *testing.T) {
	r := NewRegistry()
	s := New("user1", RoleUser, 1)
	r.Join(s)
	r.Deliver([]string{UserRoom("user1")}, []byte("hello"))
	if got := recv(t, s); string(got) != "hello" {
		t.Fatalf("expected hello, got %s", got)
	}
	r.Leave(s)
	r.Deliver([]string{UserRoom("user1")}, []byte("world"))
	select {
	case <-s.Events():
		t.Fatal("received message after leave")
	default:
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := New("user1", RoleUser, 1)
	r.Join(s)
	r.Leave(s)
	r.Leave(s)
	if n := r.Count(UserRoom("user1")); n != 0 {
		t.Fatalf("expected empty room, got %d sessions", n)
	}
}

func TestMultipleSessionsPerSubjectAllReceive(t *testing.T) {
	r := NewRegistry()
	tab1 := New("user1", RoleUser, 1)
	tab2 := New("user1", RoleUser, 1)
	r.Join(tab1)
	r.Join(tab2)
	if n := r.Count(UserRoom("user1")); n != 2 {
		t.Fatalf("expected 2 sessions, got %d", n)
	}
	r.Deliver([]string{UserRoom("user1")}, []byte("ev"))
	if string(recv(t, tab1)) != "ev" || string(recv(t, tab2)) != "ev" {
		t.Fatal("both tabs should receive the event")
	}
}

func TestAdminAndUserRoomsAreDisjoint(t *testing.T) {
	r := NewRegistry()
	user := New("subj", RoleUser, 1)
	admin := New("subj", RoleAdmin, 1)
	r.Join(user)
	r.Join(admin)
	if user.Room() == admin.Room() {
		t.Fatal("admin and user sessions for the same subject share a room")
	}
	r.Deliver([]string{UserRoom("subj")}, []byte("user-only"))
	recv(t, user)
	select {
	case <-admin.Events():
		t.Fatal("admin session received a user room event")
	default:
	}
}

func TestDeliverDoesNotBlockOnFullBuffer(t *testing.T) {
	r := NewRegistry()
	slow := New("user1", RoleUser, 1)
	fast := New("user1", RoleUser, 2)
	r.Join(slow)
	r.Join(fast)
	r.Deliver([]string{UserRoom("user1")}, []byte("a"))
	done := make(chan struct{})
	go func() {
		// slow's buffer is already full; this must not stall.
		r.Deliver([]string{UserRoom("user1")}, []byte("b"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on a full session buffer")
	}
	if string(recv(t, fast)) != "a" || string(recv(t, fast)) != "b" {
		t.Fatal("fast session should receive both events in order")
	}
}

func TestConcurrentJoinLeaveDeliver(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := New("user1", RoleUser, 4)
			r.Join(s)
			r.Deliver([]string{UserRoom("user1")}, []byte("x"))
			r.Leave(s)
		}()
	}
	wg.Wait()
	if n := r.Count(UserRoom("user1")); n != 0 {
		t.Fatalf("expected empty room after churn, got %d", n)
	}
}
