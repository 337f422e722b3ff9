package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/models"
	"backend/internal/service"
)

func ts(day int) time.Time {
	return time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC)
}

func tsp(day int) *time.Time {
	t := ts(day)
	return &t
}

func account(id, userID int64, createdDay int) *models.BusinessAccount {
	return &models.BusinessAccount{
		ID:                   id,
		BusinessConnectionID: "conn-" + string(rune('a'+id)),
		UserID:               userID,
		IsEnabled:            true,
		FirstName:            "Owner",
		CreatedAt:            ts(createdDay),
	}
}

func TestBuildVirtualAccountsMergesReRegisteredRows(t *testing.T) {
	// Owner 999 registered twice: row A on day 1, row B on day 2. Both rows
	// carry chat 42 since Telegram redelivered it to the new connection; the
	// counters differ because row A saw fewer messages.
	a := account(1, 999, 1)
	b := account(2, 999, 2)

	chats := map[int64][]models.BusinessChat{
		1: {{ID: 10, ChatID: 42, BusinessAccountID: 1, ChatType: "private", MessageCount: 3, UnreadCount: 1, LastMessageAt: tsp(1)}},
		2: {{ID: 20, ChatID: 42, BusinessAccountID: 2, ChatType: "private", MessageCount: 5, UnreadCount: 0, LastMessageAt: tsp(3)}},
	}

	virtual := service.BuildVirtualAccounts([]*models.BusinessAccount{a, b}, chats)
	require.Len(t, virtual, 1)

	v := virtual[0]
	assert.Equal(t, int64(2), v.ID, "newest row must represent the group")
	assert.Equal(t, int64(999), v.UserID)
	require.Len(t, v.Chats, 1, "duplicate chat ids must collapse to one entry")

	chat := v.Chats[0]
	assert.Equal(t, int64(20), chat.ID, "fresher duplicate wins identity")
	assert.Equal(t, 5, chat.MessageCount, "counters take the max, never the sum")
	assert.Equal(t, 1, chat.UnreadCount)
	assert.Equal(t, ts(3), *chat.LastMessageAt)
}

func TestBuildVirtualAccountsKeepsUsersSeparate(t *testing.T) {
	a := account(1, 111, 1)
	b := account(2, 222, 2)

	virtual := service.BuildVirtualAccounts([]*models.BusinessAccount{a, b}, nil)
	require.Len(t, virtual, 2)
	assert.Equal(t, int64(111), virtual[0].UserID)
	assert.Equal(t, int64(222), virtual[1].UserID)
}

func TestBuildVirtualAccountsSortsChatsByActivity(t *testing.T) {
	a := account(1, 999, 1)

	chats := map[int64][]models.BusinessChat{
		1: {
			{ID: 1, ChatID: 101, BusinessAccountID: 1, LastMessageAt: tsp(2)},
			{ID: 2, ChatID: 102, BusinessAccountID: 1},
			{ID: 3, ChatID: 103, BusinessAccountID: 1, LastMessageAt: tsp(5)},
		},
	}

	virtual := service.BuildVirtualAccounts([]*models.BusinessAccount{a}, chats)
	require.Len(t, virtual, 1)
	require.Len(t, virtual[0].Chats, 3)

	got := []int64{virtual[0].Chats[0].ChatID, virtual[0].Chats[1].ChatID, virtual[0].Chats[2].ChatID}
	assert.Equal(t, []int64{103, 101, 102}, got, "newest activity first, chats without activity last")
}

func TestBuildVirtualAccountsDuplicateWithoutTimestampLoses(t *testing.T) {
	a := account(1, 999, 1)
	b := account(2, 999, 2)

	chats := map[int64][]models.BusinessChat{
		1: {{ID: 10, ChatID: 42, BusinessAccountID: 1, MessageCount: 7, LastMessageAt: tsp(4)}},
		2: {{ID: 20, ChatID: 42, BusinessAccountID: 2, MessageCount: 2}},
	}

	virtual := service.BuildVirtualAccounts([]*models.BusinessAccount{a, b}, chats)
	require.Len(t, virtual, 1)
	require.Len(t, virtual[0].Chats, 1)

	chat := virtual[0].Chats[0]
	assert.Equal(t, int64(10), chat.ID, "a chat with a timestamp outranks one without")
	assert.Equal(t, 7, chat.MessageCount)
	assert.Equal(t, ts(4), *chat.LastMessageAt)
}

func TestFilterBusinessChatsDropsBusinessCounterparts(t *testing.T) {
	v := models.VirtualAccount{
		UserID: 999,
		Chats: []models.BusinessChat{
			{ChatID: 42},
			{ChatID: 777}, // another monitored business owner
			{ChatID: 55},
		},
	}

	filtered := service.FilterBusinessChats(v, []int64{777, 888})
	require.Len(t, filtered.Chats, 2)
	assert.Equal(t, int64(42), filtered.Chats[0].ChatID)
	assert.Equal(t, int64(55), filtered.Chats[1].ChatID)
}

func TestFilterBusinessChatsNoOwners(t *testing.T) {
	v := models.VirtualAccount{Chats: []models.BusinessChat{{ChatID: 42}}}
	filtered := service.FilterBusinessChats(v, nil)
	assert.Len(t, filtered.Chats, 1)
}
