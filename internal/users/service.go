package users

import (
	"context"
	"log"

	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/data"
)

// GuestID is the synthetic identity used when the host platform supplies
// no user at all (e.g. opened outside Telegram).
const GuestID int64 = 1001

// Identity is what the host messaging platform hands us at session start.
type Identity struct {
	ID           int64  `json:"id"`
	DisplayName  string `json:"displayName"`
	Username     string `json:"username,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Guest returns the fallback identity.
func Guest() Identity {
	return Identity{ID: GuestID, DisplayName: "GUEST_NODE"}
}

// Record is a user row joined with its live ban flag for the admin list.
type Record struct {
	data.User
	IsBanned bool `json:"isBanned"`
}

type Repository interface {
	Upsert(ctx context.Context, u *data.User) error
	GetByID(ctx context.Context, telegramID int64) (*data.User, error)
	List(ctx context.Context, limit int) ([]data.User, error)
	Count(ctx context.Context) (int, error)
}

type BanReader interface {
	IsBanned(ctx context.Context, identityID int64) (bool, error)
}

// Service maintains user records and composes them with ban state.
type Service struct {
	repo Repository
	gate BanReader
}

func NewService(repo Repository, gate BanReader) *Service {
	return &Service{repo: repo, gate: gate}
}

// Touch records a contact from the identity: create on first sight, refresh
// profile and last_login after. Guests are not persisted.
func (s *Service) Touch(ctx context.Context, id Identity) {
	if s.repo == nil || id.ID == GuestID {
		return
	}

	name := id.DisplayName
	if name == "" {
		name = "Unknown"
	}
	lang := id.LanguageCode
	if lang == "" {
		lang = "en"
	}

	u := &data.User{
		TelegramID:  id.ID,
		DisplayName: name,
		Username:    id.Username,
		AvatarURL:   id.AvatarURL,
		Language:    lang,
		Platform:    "Telegram Mini App",
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		// User bookkeeping must never block the access flow.
		log.Printf("user upsert failed for %d: %v", id.ID, err)
	}
}

// List returns users with their current ban flags for the admin dashboard.
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	if s.repo == nil {
		return nil, nil
	}
	us, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(us))
	for _, u := range us {
		banned, err := s.gate.IsBanned(ctx, u.TelegramID)
		if err != nil {
			// Show the row anyway; a store hiccup should not empty the list.
			banned = false
		}
		records = append(records, Record{User: u, IsBanned: banned})
	}
	return records, nil
}

// Count returns the number of identities ever seen.
func (s *Service) Count(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.Count(ctx)
}

var _ BanReader = (*bans.Gate)(nil)
