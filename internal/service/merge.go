package service

import (
	"sort"

	"backend/internal/models"
)

// BuildVirtualAccounts collapses connection rows sharing one Telegram user id
// into one virtual account each. The most recently created row of a group wins
// the display fields; re-registration is the dominant case and later rows are
// assumed more accurate. Chats of all rows are merged and de-duplicated by
// Telegram chat id: the duplicate with the more recent last_message_at is kept
// (a chat with a timestamp outranks one without), and counters take the max
// across duplicates. Duplicates are the same conversation observed twice,
// never two conversations, so counters must not be summed.
func BuildVirtualAccounts(accounts []*models.BusinessAccount, chatsByAccount map[int64][]models.BusinessChat) []models.VirtualAccount {
	groups := make(map[int64][]*models.BusinessAccount)
	var order []int64
	for _, account := range accounts {
		if _, seen := groups[account.UserID]; !seen {
			order = append(order, account.UserID)
		}
		groups[account.UserID] = append(groups[account.UserID], account)
	}

	virtual := make([]models.VirtualAccount, 0, len(groups))
	for _, userID := range order {
		group := groups[userID]

		representative := group[0]
		for _, account := range group[1:] {
			if account.CreatedAt.After(representative.CreatedAt) {
				representative = account
			}
		}

		byChatID := make(map[int64]models.BusinessChat)
		var chatOrder []int64
		for _, account := range group {
			for _, chat := range chatsByAccount[account.ID] {
				existing, seen := byChatID[chat.ChatID]
				if !seen {
					byChatID[chat.ChatID] = chat
					chatOrder = append(chatOrder, chat.ChatID)
					continue
				}
				byChatID[chat.ChatID] = mergeChatPair(existing, chat)
			}
		}

		chats := make([]models.BusinessChat, 0, len(byChatID))
		for _, chatID := range chatOrder {
			chats = append(chats, byChatID[chatID])
		}
		sort.SliceStable(chats, func(i, j int) bool {
			a, b := chats[i].LastMessageAt, chats[j].LastMessageAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.After(*b)
			}
		})

		virtual = append(virtual, models.VirtualAccount{
			ID:                   representative.ID,
			BusinessConnectionID: representative.BusinessConnectionID,
			UserID:               representative.UserID,
			IsEnabled:            representative.IsEnabled,
			CanReply:             representative.CanReply,
			FirstName:            representative.FirstName,
			LastName:             representative.LastName,
			Username:             representative.Username,
			Chats:                chats,
		})
	}

	return virtual
}

// mergeChatPair picks the fresher duplicate for identity/display fields and
// takes the max of both counters.
func mergeChatPair(a, b models.BusinessChat) models.BusinessChat {
	kept, other := a, b
	if chatFresher(b, a) {
		kept, other = b, a
	}
	if other.UnreadCount > kept.UnreadCount {
		kept.UnreadCount = other.UnreadCount
	}
	if other.MessageCount > kept.MessageCount {
		kept.MessageCount = other.MessageCount
	}
	if kept.LastMessageAt == nil {
		kept.LastMessageAt = other.LastMessageAt
	}
	return kept
}

func chatFresher(a, b models.BusinessChat) bool {
	switch {
	case a.LastMessageAt == nil:
		return false
	case b.LastMessageAt == nil:
		return true
	default:
		return a.LastMessageAt.After(*b.LastMessageAt)
	}
}

// FilterBusinessChats drops chats whose Telegram chat id belongs to another
// monitored business account: those are two business accounts messaging each
// other, not customer conversations, and must never reach the UI.
func FilterBusinessChats(account models.VirtualAccount, enabledOwnerIDs []int64) models.VirtualAccount {
	owners := make(map[int64]struct{}, len(enabledOwnerIDs))
	for _, id := range enabledOwnerIDs {
		owners[id] = struct{}{}
	}

	filtered := make([]models.BusinessChat, 0, len(account.Chats))
	for _, chat := range account.Chats {
		if _, isBusiness := owners[chat.ChatID]; isBusiness {
			continue
		}
		filtered = append(filtered, chat)
	}
	account.Chats = filtered
	return account
}
