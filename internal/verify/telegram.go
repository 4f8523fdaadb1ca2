package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// MembershipChecker reports whether an identity belongs to the configured
// channel. Failures must degrade to "not verified", never crash a flow.
type MembershipChecker interface {
	IsMember(ctx context.Context, botToken, chatID string, identityID int64) bool
}

// TelegramChecker calls the Bot API getChatMember method.
type TelegramChecker struct {
	BaseURL string // override for tests, default https://api.telegram.org
	Client  *http.Client
}

func NewTelegramChecker() *TelegramChecker {
	return &TelegramChecker{
		BaseURL: "https://api.telegram.org",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// memberStatuses that count as verified channel membership.
var memberStatuses = map[string]bool{
	"creator":       true,
	"administrator": true,
	"member":        true,
	"restricted":    true,
}

type chatMemberResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Status string `json:"status"`
	} `json:"result"`
}

// IsMember returns true only on a confirmed membership status. Any transport
// or API failure is a soft "not verified".
func (c *TelegramChecker) IsMember(ctx context.Context, botToken, chatID string, identityID int64) bool {
	if botToken == "" || chatID == "" {
		return false
	}

	endpoint := fmt.Sprintf("%s/bot%s/getChatMember?chat_id=%s&user_id=%d",
		c.BaseURL, botToken, url.QueryEscape(chatID), identityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("membership check failed for %d: %v", identityID, err)
		return false
	}
	defer resp.Body.Close()

	var body chatMemberResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	if !body.OK {
		return false
	}
	return memberStatuses[body.Result.Status]
}
