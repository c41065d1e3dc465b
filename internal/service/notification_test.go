package service

import (
	"testing"

	"campusmart/internal/apperr"
	"campusmart/internal/event"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRecordThenDeliver(t *testing.T) {
	f := newFixture(t)
	u := f.user("Ada")

	var n *model.Notification
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = f.notify.Record(f.ctx, tx, u.ID, "Hello", "World", model.NotifyGeneral, nil)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, f.pub.count(), "recording must not push")

	f.notify.Deliver(f.ctx, n, nil)
	evs := f.pub.to(event.UserRoom(u.ID), event.Notification)
	require.Len(t, evs, 1)
	assert.Equal(t, event.NotificationPayload{ID: n.ID, Title: "Hello", Message: "World", Type: model.NotifyGeneral, Data: model.JSONMap{}}, evs[0].data)
	require.Len(t, f.box.items, 1)
	assert.Equal(t, n.ID, f.box.items[0].ID)
}

func TestRecordRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	u := f.user("Ada")

	_ = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.notify.Record(f.ctx, tx, u.ID, "Hello", "World", model.NotifyGeneral, nil)
		require.NoError(t, err)
		return assert.AnError
	})
	assert.Zero(t, f.countRows(&model.Notification{}, "user_id = ?", u.ID))
}

func TestNotificationListAndRead(t *testing.T) {
	f := newFixture(t)
	u, other := f.user("Ada"), f.user("Bo")

	var ids []uint
	for i := 0; i < 3; i++ {
		n, err := f.notify.Record(f.ctx, nil, u.ID, "t", "m", model.NotifyOrder, model.JSONMap{"order_id": i})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	list, err := f.notify.List(f.ctx, u.ID, false, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 3)
	assert.EqualValues(t, 3, list.UnreadCount)
	assert.Equal(t, ids[2], list.Items[0].ID)

	require.NoError(t, f.notify.MarkRead(f.ctx, u.ID, ids[0]))
	assert.True(t, apperr.Is(f.notify.MarkRead(f.ctx, other.ID, ids[1]), apperr.KindNotFound))

	list, err = f.notify.List(f.ctx, u.ID, true, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.EqualValues(t, 2, list.UnreadCount)

	n, err := f.notify.MarkAllRead(f.ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err = f.notify.List(f.ctx, u.ID, true, repository.Page{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Zero(t, list.UnreadCount)
}
