package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	ErrConfigMissing = errors.New("strict mode requires bot token and channel chat id")
	ErrStore         = errors.New("store unavailable")
)

const (
	storeKey   = "settings:global"
	ChangeChan = "keygate.settings.changed"
)

// Global is the process-wide settings singleton shared by all identities.
// Written only through the admin surface; last-write-wins.
type Global struct {
	AppName       string  `json:"appName"`
	ChannelLink   string  `json:"channelLink"`
	ContactLink   string  `json:"contactLink"`
	StrictMode    bool    `json:"strictMode"`
	BotToken      string  `json:"botToken,omitempty"`
	ChannelChatID string  `json:"channelChatId,omitempty"`
	AdminImageURL string  `json:"adminImageUrl,omitempty"`
	AdsTarget     int     `json:"adsTarget"`
	AdRewardHours float64 `json:"adRewardHours"`
	DailyAdLimit  int     `json:"dailyAdLimit"`
}

// Defaults mirror a fresh install before any admin edit.
func Defaults() Global {
	return Global{
		AppName:       "NET-HUNTER",
		AdsTarget:     10,
		AdRewardHours: 1,
		DailyAdLimit:  1,
	}
}

// Validate rejects inconsistent settings before any write happens.
func (g *Global) Validate() error {
	if g.StrictMode && (g.BotToken == "" || g.ChannelChatID == "") {
		return ErrConfigMissing
	}
	return nil
}

// Sanitized strips verification credentials for client-facing reads.
func (g Global) Sanitized() Global {
	g.BotToken = ""
	g.ChannelChatID = ""
	return g
}

// Store reads and writes the singleton and broadcasts changes.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Load returns the stored settings, or defaults when never saved.
func (s *Store) Load(ctx context.Context) (Global, error) {
	raw, err := s.client.Get(ctx, storeKey).Result()
	if err == redis.Nil {
		return Defaults(), nil
	}
	if err != nil {
		return Global{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	g := Defaults()
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return Global{}, fmt.Errorf("%w: corrupt settings record", ErrStore)
	}
	return g, nil
}

// Save validates, persists, and broadcasts. A validation failure writes
// nothing — no partial saves.
func (s *Store) Save(ctx context.Context, g Global) error {
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, storeKey, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	_ = s.client.Publish(ctx, ChangeChan, data).Err()
	return nil
}

// Subscribe streams settings updates until the context is cancelled.
func (s *Store) Subscribe(ctx context.Context) (<-chan Global, func()) {
	sub := s.client.Subscribe(ctx, ChangeChan)
	out := make(chan Global, 4)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			g := Defaults()
			if err := json.Unmarshal([]byte(msg.Payload), &g); err != nil {
				continue
			}
			select {
			case out <- g:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
