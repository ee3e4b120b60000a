// Package presence tracks who has an entity open in the editor. Each open
// session maintains a per-member Redis key with a TTL refreshed by
// heartbeats, so a crashed client disappears on its own; join and leave
// events fan out over pub/sub.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MemberTTL is how long a member stays visible without a heartbeat.
	MemberTTL = 60 * time.Second

	keyPrefix     = "presence:"
	channelPrefix = "presence:events:"
)

// Member is what peers see about an editing participant.
type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Color  int    `json:"color"` // HSL hue, 0..359
}

// Event is a join or leave notification on a room channel.
type Event struct {
	Type   string `json:"type"` // "joined" or "left"
	Room   string `json:"room"`
	Member Member `json:"member"`
}

type Service struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client) *Service {
	return &Service{client: client, ttl: MemberTTL}
}

func memberKey(room, userID string) string {
	return keyPrefix + room + ":" + userID
}

func channel(room string) string {
	return channelPrefix + room
}

// Join registers a member in the room and announces it. The member's color
// is derived from the user id if unset.
func (s *Service) Join(ctx context.Context, room string, m Member) error {
	if m.Color == 0 {
		m.Color = ColorForUser(m.UserID)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := s.client.Set(ctx, memberKey(room, m.UserID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("register presence: %w", err)
	}
	return s.publish(ctx, Event{Type: "joined", Room: room, Member: m})
}

// Heartbeat extends a member's visibility. It reports false when the
// member already expired and needs to Join again.
func (s *Service) Heartbeat(ctx context.Context, room, userID string) (bool, error) {
	ok, err := s.client.Expire(ctx, memberKey(room, userID), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("refresh presence: %w", err)
	}
	return ok, nil
}

// Leave removes the member and announces it.
func (s *Service) Leave(ctx context.Context, room, userID string) error {
	key := memberKey(room, userID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read presence: %w", err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	var m Member
	if err := json.Unmarshal(raw, &m); err != nil {
		m = Member{UserID: userID}
	}
	return s.publish(ctx, Event{Type: "left", Room: room, Member: m})
}

// Peers lists everyone in the room except the asking user.
func (s *Service) Peers(ctx context.Context, room, selfID string) ([]Member, error) {
	var (
		cursor  uint64
		members []Member
	)
	pattern := keyPrefix + room + ":*"
	selfKey := memberKey(room, selfID)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		for _, key := range keys {
			if key == selfKey {
				continue
			}
			raw, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue // expired between scan and read
			}
			if err != nil {
				return nil, fmt.Errorf("read presence: %w", err)
			}
			var m Member
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			members = append(members, m)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return members, nil
}

// Subscribe opens a pub/sub subscription for the room's join and leave
// events. The caller owns the returned subscription and must Close it.
func (s *Service) Subscribe(ctx context.Context, room string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel(room))
}

// DecodeEvent parses a pub/sub message payload.
func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode presence event: %w", err)
	}
	return ev, nil
}

func (s *Service) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, channel(ev.Room), payload).Err(); err != nil {
		return fmt.Errorf("publish presence event: %w", err)
	}
	return nil
}

// ColorForUser maps a user id onto a stable HSL hue. The first eight hex
// digits of the id are read as a number and reduced mod 360, so the same
// user gets the same color everywhere without any stored state.
func ColorForUser(userID string) int {
	var digits []byte
	for i := 0; i < len(userID) && len(digits) < 8; i++ {
		c := userID[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
	}
	if len(digits) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(string(digits), 16, 64)
	if err != nil {
		return 0
	}
	return int(n % 360)
}
