package service

import (
	"strings"
	"testing"

	"campusmart/internal/apperr"
	"campusmart/internal/event"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateIsSymmetric(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("Ada"), f.user("Bo")

	first, err := f.chat.FindOrCreate(f.ctx, nil, a.ID, b.ID, nil)
	require.NoError(t, err)
	second, err := f.chat.FindOrCreate(f.ctx, nil, b.ID, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.countRows(&model.Chat{}, "1 = 1"))

	_, err = f.chat.FindOrCreate(f.ctx, nil, a.ID, a.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStartChat(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 1)

	conv, err := f.chat.Start(f.ctx, m.buyer.ID, m.seller.ID, &m.product.ID)
	require.NoError(t, err)
	require.NotNil(t, conv.OtherUser)
	assert.Equal(t, m.seller.ID, conv.OtherUser.ID)
	require.NotNil(t, conv.StoreID)
	assert.Equal(t, m.store.ID, *conv.StoreID)
	require.NotNil(t, conv.Product)
	assert.Equal(t, m.product.ID, conv.Product.ID)

	_, err = f.chat.Start(f.ctx, m.buyer.ID, 4242, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.chat.Start(f.ctx, m.buyer.ID, m.buyer.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	a, b, eve := f.user("Ada"), f.user("Bo"), f.user("Eve")
	chat, err := f.chat.FindOrCreate(f.ctx, nil, a.ID, b.ID, nil)
	require.NoError(t, err)

	long := strings.Repeat("é", 60)
	msg, err := f.chat.SendMessage(f.ctx, a.ID, chat.ID, MessageInput{Content: long})
	require.NoError(t, err)
	assert.Equal(t, model.MessageText, msg.MessageType)

	assert.Len(t, f.pub.to(event.ChatRoom(chat.ID), event.NewMessage), 1)
	badges := f.pub.to(event.UserRoom(b.ID), event.NewMessageNotification)
	require.Len(t, badges, 1)
	assert.Equal(t, chat.ID, badges[0].data.(event.MessageNotificationPayload).ChatID)

	notes := f.pub.to(event.UserRoom(b.ID), event.Notification)
	require.Len(t, notes, 1)
	n := notes[0].data.(event.NotificationPayload)
	assert.Equal(t, model.NotifyChat, n.Type)
	assert.Equal(t, "New message from Ada", n.Title)
	assert.Equal(t, strings.Repeat("é", 50)+"...", n.Message)

	_, err = f.chat.SendMessage(f.ctx, b.ID, chat.ID, MessageInput{Type: model.MessageImage, MediaURL: "https://cdn/x.png"})
	require.NoError(t, err)
	notes = f.pub.to(event.UserRoom(a.ID), event.Notification)
	require.Len(t, notes, 1)
	assert.Equal(t, "📷 Sent a photo", notes[0].data.(event.NotificationPayload).Message)

	_, err = f.chat.SendMessage(f.ctx, a.ID, chat.ID, MessageInput{Content: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.chat.SendMessage(f.ctx, a.ID, chat.ID, MessageInput{Content: "hi", Type: "sticker"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.chat.SendMessage(f.ctx, eve.ID, chat.ID, MessageInput{Content: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.chat.SendMessage(f.ctx, a.ID, 999, MessageInput{Content: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.EqualValues(t, 2, f.countRows(&model.Message{}, "chat_id = ?", chat.ID))
}

func TestListMessagesMarksOtherPartyRead(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("Ada"), f.user("Bo")
	chat, err := f.chat.FindOrCreate(f.ctx, nil, a.ID, b.ID, nil)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.chat.SendMessage(f.ctx, a.ID, chat.ID, MessageInput{Content: text})
		require.NoError(t, err)
	}
	_, err = f.chat.SendMessage(f.ctx, b.ID, chat.ID, MessageInput{Content: "reply"})
	require.NoError(t, err)

	// the sender viewing does not mark their own messages
	page, err := f.chat.ListMessages(f.ctx, a.ID, chat.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 4)
	assert.Equal(t, "one", page.Messages[0].Content)
	assert.Equal(t, "reply", page.Messages[3].Content)
	assert.False(t, page.Messages[0].IsRead)
	assert.True(t, page.Messages[3].IsRead, "returned rows reflect the read just applied")
	assert.EqualValues(t, 3, f.countRows(&model.Message{}, "sender_id = ? AND is_read = ?", a.ID, false))
	assert.EqualValues(t, 0, f.countRows(&model.Message{}, "sender_id = ? AND is_read = ?", b.ID, false))

	convs, err := f.chat.ListConversations(f.ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.EqualValues(t, 3, convs[0].UnreadCount)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "reply", convs[0].LastMessage.Content)

	page, err = f.chat.ListMessages(f.ctx, b.ID, chat.ID, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.countRows(&model.Message{}, "is_read = ?", false))
	for _, m := range page.Messages {
		assert.True(t, m.IsRead, m.Content)
	}

	// newest-first paging, each page chronological
	page, err = f.chat.ListMessages(f.ctx, b.ID, chat.ID, repository.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "three", page.Messages[0].Content)
	assert.Equal(t, "reply", page.Messages[1].Content)
	assert.Equal(t, 2, page.Pages)
}

func TestListConversationsOrder(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.user("Ada"), f.user("Bo"), f.user("Cy")
	ab, err := f.chat.FindOrCreate(f.ctx, nil, a.ID, b.ID, nil)
	require.NoError(t, err)
	ac, err := f.chat.FindOrCreate(f.ctx, nil, c.ID, a.ID, nil)
	require.NoError(t, err)

	_, err = f.chat.SendMessage(f.ctx, b.ID, ab.ID, MessageInput{Content: "first"})
	require.NoError(t, err)
	_, err = f.chat.SendMessage(f.ctx, c.ID, ac.ID, MessageInput{Content: "second"})
	require.NoError(t, err)

	convs, err := f.chat.ListConversations(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ac.ID, convs[0].ID)
	assert.Equal(t, c.ID, convs[0].OtherUser.ID)
	assert.Equal(t, ab.ID, convs[1].ID)
}

func TestMarkReadEmitsEvent(t *testing.T) {
	f := newFixture(t)
	a, b, eve := f.user("Ada"), f.user("Bo"), f.user("Eve")
	chat, err := f.chat.FindOrCreate(f.ctx, nil, a.ID, b.ID, nil)
	require.NoError(t, err)
	_, err = f.chat.SendMessage(f.ctx, a.ID, chat.ID, MessageInput{Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, f.chat.MarkRead(f.ctx, b.ID, chat.ID))
	assert.EqualValues(t, 0, f.countRows(&model.Message{}, "is_read = ?", false))

	evs := f.pub.to(event.ChatRoom(chat.ID), event.MessagesRead)
	require.Len(t, evs, 1)
	assert.Equal(t, event.MessagesReadPayload{ChatID: chat.ID, ReadBy: b.ID}, evs[0].data)

	assert.True(t, apperr.Is(f.chat.MarkRead(f.ctx, eve.ID, chat.ID), apperr.KindForbidden))
}
