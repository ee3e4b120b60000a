package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupPresence(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestJoinAndPeersExcludesSelf(t *testing.T) {
	svc, _ := setupPresence(t)
	ctx := context.Background()

	if err := svc.Join(ctx, "doc_1", Member{UserID: "usr_a", Name: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Join(ctx, "doc_1", Member{UserID: "usr_b", Name: "Ben"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Join(ctx, "doc_2", Member{UserID: "usr_c", Name: "Cam"}); err != nil {
		t.Fatal(err)
	}

	peers, err := svc.Peers(ctx, "doc_1", "usr_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 || peers[0].UserID != "usr_b" {
		t.Fatalf("peers = %v, want only usr_b", peers)
	}
	if peers[0].Color != ColorForUser("usr_b") {
		t.Fatalf("peer color = %d, want derived from user id", peers[0].Color)
	}
}

func TestMemberExpiresWithoutHeartbeat(t *testing.T) {
	svc, mr := setupPresence(t)
	ctx := context.Background()

	if err := svc.Join(ctx, "doc_1", Member{UserID: "usr_a", Name: "Ada"}); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(MemberTTL / 2)
	ok, err := svc.Heartbeat(ctx, "doc_1", "usr_a")
	if err != nil || !ok {
		t.Fatalf("heartbeat = %v, %v, want refreshed", ok, err)
	}

	// The heartbeat reset the TTL, so half a window later the member is
	// still there.
	mr.FastForward(MemberTTL / 2)
	peers, err := svc.Peers(ctx, "doc_1", "usr_other")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 {
		t.Fatalf("peers after heartbeat = %v", peers)
	}

	mr.FastForward(MemberTTL + time.Second)
	peers, err = svc.Peers(ctx, "doc_1", "usr_other")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 0 {
		t.Fatalf("peers after expiry = %v, want none", peers)
	}

	ok, err = svc.Heartbeat(ctx, "doc_1", "usr_a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("heartbeat on expired member reported success, want rejoin required")
	}
}

func TestLeavePublishesEvent(t *testing.T) {
	svc, _ := setupPresence(t)
	ctx := context.Background()

	sub := svc.Subscribe(ctx, "doc_1")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil { // subscription confirmation
		t.Fatal(err)
	}

	if err := svc.Join(ctx, "doc_1", Member{UserID: "usr_a", Name: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Leave(ctx, "doc_1", "usr_a"); err != nil {
		t.Fatal(err)
	}

	types := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			t.Fatal(err)
		}
		ev, err := DecodeEvent(msg.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if ev.Member.UserID != "usr_a" {
			t.Fatalf("event member = %+v", ev.Member)
		}
		types = append(types, ev.Type)
	}
	if types[0] != "joined" || types[1] != "left" {
		t.Fatalf("event types = %v", types)
	}

	peers, err := svc.Peers(ctx, "doc_1", "usr_other")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 0 {
		t.Fatalf("peers after leave = %v", peers)
	}
}

func TestLeaveUnknownMemberIsNoop(t *testing.T) {
	svc, _ := setupPresence(t)
	if err := svc.Leave(context.Background(), "doc_1", "usr_ghost"); err != nil {
		t.Fatalf("leave unknown member = %v, want nil", err)
	}
}

func TestColorForUser(t *testing.T) {
	// First eight hex digits of the id, read as a number, mod 360.
	// usr_00000168 -> 0x00000168 = 360 -> hue 0.
	if got := ColorForUser("usr_00000168ffff"); got != 0 {
		t.Fatalf("hue = %d, want 0", got)
	}
	// 0x000000b4 = 180.
	if got := ColorForUser("usr_000000b4"); got != 180 {
		t.Fatalf("hue = %d, want 180", got)
	}
	if got := ColorForUser("___"); got != 0 {
		t.Fatalf("hue for id without hex digits = %d, want 0", got)
	}
	a := ColorForUser("usr_deadbeef01")
	b := ColorForUser("usr_deadbeef01")
	if a != b {
		t.Fatalf("color not stable: %d vs %d", a, b)
	}
	if a < 0 || a > 359 {
		t.Fatalf("hue out of range: %d", a)
	}
}
