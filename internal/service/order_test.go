package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"campusmart/internal/apperr"
	"campusmart/internal/event"
	"campusmart/internal/logging"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateOrderSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	m := f.market("1000", 5)

	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID, Quantity: 2, Note: " blue please "})
	require.NoError(t, err)

	o := placed.Order
	assert.Equal(t, model.OrderPendingPayment, o.Status)
	assert.True(t, o.UnitPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(2000)))
	assert.True(t, o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity))).Equal(o.TotalPrice))
	assert.Equal(t, "blue please", o.BuyerNote)
	assert.Regexp(t, `^ORD-\d{12}-[0-9A-F]{6}$`, o.OrderNumber)
	assert.Equal(t, "Campus Bank", placed.BankDetails.BankName)
	assert.Equal(t, "0123456789", placed.BankDetails.AccountNumber)

	// stock is only taken on approval
	assert.Equal(t, 5, f.reloadProduct(m.product.ID).StockQuantity)

	// the price change later does not touch the order
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", m.product.ID).Update("price", decimal.NewFromInt(1500)).Error)
	got, err := f.orders.Get(f.ctx, m.buyer.ID, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(2000)))

	notes := f.pub.to(event.UserRoom(m.seller.ID), event.Notification)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].data.(event.NotificationPayload).Message, "Total: ₦2,000")
	assert.Len(t, f.box.items, 1)
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	m := f.market("250.50", 1)

	_, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID, Quantity: -1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: 9999})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID, Quantity: 2})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.orders.Create(f.ctx, m.seller.ID, CreateOrderInput{ProductID: m.product.ID})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", m.product.ID).Update("is_active", false).Error)
	_, err = f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Zero(t, f.countRows(&model.Order{}, "1 = 1"))
}

func TestOrderLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	m := f.market("1000", 10)

	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID, Quantity: 2})
	require.NoError(t, err)
	orderID := placed.Order.ID
	assert.True(t, placed.Order.TotalPrice.Equal(decimal.NewFromInt(2000)))

	conf, err := f.orders.ConfirmPayment(f.ctx, m.buyer.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAwaitingApproval, conf.Order.Status)
	assert.NotNil(t, conf.Order.PaymentConfirmedAt)

	var msgs []model.Message
	require.NoError(t, f.db.Where("chat_id = ?", conf.ChatID).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageReceipt, msgs[0].MessageType)
	require.NotNil(t, msgs[0].OrderID)
	assert.Equal(t, orderID, *msgs[0].OrderID)
	assert.Contains(t, msgs[0].Content, "PAYMENT RECEIPT")
	assert.Contains(t, msgs[0].Content, "Amount: ₦2,000.00")

	assert.Len(t, f.pub.to(event.ChatRoom(conf.ChatID), event.NewMessage), 1)
	assert.Len(t, f.pub.to(event.UserRoom(m.seller.ID), event.NewMessageNotification), 1)

	approved, err := f.orders.Approve(f.ctx, m.seller.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	p := f.reloadProduct(m.product.ID)
	assert.Equal(t, 8, p.StockQuantity)
	assert.True(t, p.IsInStock)
	assert.Equal(t, 1, p.TotalOrders)
	assert.Equal(t, 1, f.reloadStore(m.store.ID).TotalOrders)

	updates := f.pub.to(event.UserRoom(m.buyer.ID), event.OrderStatusUpdate)
	require.Len(t, updates, 2)
	last := updates[len(updates)-1].data.(event.OrderStatusPayload)
	assert.Equal(t, model.OrderApproved, last.Status)
	require.NotNil(t, last.Order)
	require.NotNil(t, last.Order.Product)
	assert.Equal(t, orderID, last.Order.ID)
	assert.Len(t, f.pub.to(event.UserRoom(m.seller.ID), event.OrderStatusUpdate), 2)

	done, err := f.orders.Complete(f.ctx, m.buyer.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, done.Status)

	_, err = f.reviews.Create(f.ctx, m.buyer.ID, CreateReviewInput{ProductID: m.product.ID, Rating: 5})
	require.NoError(t, err)
	_, err = f.reviews.Create(f.ctx, m.buyer.ID, CreateReviewInput{ProductID: m.product.ID, Rating: 4})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestApproveRequiresAwaitingApproval(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 3)

	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)
	events := f.pub.count()
	notes := f.countRows(&model.Notification{}, "1 = 1")

	_, err = f.orders.Approve(f.ctx, m.seller.ID, placed.Order.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	_, err = f.orders.Reject(f.ctx, m.seller.ID, placed.Order.ID, "nope")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	assert.Equal(t, 3, f.reloadProduct(m.product.ID).StockQuantity)
	assert.Equal(t, events, f.pub.count())
	assert.Equal(t, notes, f.countRows(&model.Notification{}, "1 = 1"))
	assert.Zero(t, f.countRows(&model.Message{}, "1 = 1"))

	got, err := f.orders.Get(f.ctx, m.buyer.ID, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPendingPayment, got.Status)
}

func TestApproveEmptiesStock(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 2)

	order := f.paidOrder(m, 2)
	_, err := f.orders.Approve(f.ctx, m.seller.ID, order.ID)
	require.NoError(t, err)

	p := f.reloadProduct(m.product.ID)
	assert.Equal(t, 0, p.StockQuantity)
	assert.False(t, p.IsInStock)

	_, err = f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	order := f.paidOrder(m, 1)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orders.Approve(f.ctx, m.seller.ID, order.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, f.reloadProduct(m.product.ID).StockQuantity)
	assert.Equal(t, 1, f.reloadStore(m.store.ID).TotalOrders)
}

func TestUpdateStatusIfIsCompareAndSet(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)

	repo := repository.NewOrderRepository(f.db)
	err = repo.UpdateStatusIf(f.ctx, nil, placed.Order.ID, model.OrderAwaitingApproval, model.OrderApproved, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	require.NoError(t, repo.UpdateStatusIf(f.ctx, nil, placed.Order.ID, model.OrderPendingPayment, model.OrderAwaitingApproval,
		map[string]any{"seller_note": "checked"}))
	got, err := repo.FindByID(f.ctx, nil, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAwaitingApproval, got.Status)
	assert.Equal(t, "checked", got.SellerNote)
}

func TestRejectRecordsReason(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	order := f.paidOrder(m, 1)

	rejected, err := f.orders.Reject(f.ctx, m.seller.ID, order.ID, "insufficient proof")
	require.NoError(t, err)
	assert.Equal(t, model.OrderRejected, rejected.Status)
	assert.Equal(t, "insufficient proof", rejected.SellerNote)
	assert.Equal(t, 5, f.reloadProduct(m.product.ID).StockQuantity)

	var notes []model.Notification
	require.NoError(t, f.db.Where("user_id = ?", m.buyer.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "insufficient proof")

	var receipts []model.Message
	require.NoError(t, f.db.Where("message_type = ?", model.MessageReceipt).Order("id").Find(&receipts).Error)
	require.Len(t, receipts, 2)
	assert.Contains(t, receipts[1].Content, "PAYMENT REJECTED")
}

func TestRejectDefaultsReason(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	order := f.paidOrder(m, 1)

	rejected, err := f.orders.Reject(f.ctx, m.seller.ID, order.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, defaultRejectReason, rejected.SellerNote)
}

func TestTransitionsCheckActor(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	stranger := f.user("Eve")

	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)
	id := placed.Order.ID

	_, err = f.orders.ConfirmPayment(f.ctx, m.seller.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.orders.Get(f.ctx, stranger.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.orders.ConfirmPayment(f.ctx, m.buyer.ID, id)
	require.NoError(t, err)
	_, err = f.orders.ConfirmPayment(f.ctx, m.buyer.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = f.orders.Approve(f.ctx, m.buyer.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.orders.Complete(f.ctx, m.buyer.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = f.orders.Approve(f.ctx, m.seller.ID, id)
	require.NoError(t, err)
	_, err = f.orders.Complete(f.ctx, m.seller.ID, id)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCancelApprovedRestoresStock(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 2)
	order := f.paidOrder(m, 2)
	_, err := f.orders.Approve(f.ctx, m.seller.ID, order.ID)
	require.NoError(t, err)
	require.False(t, f.reloadProduct(m.product.ID).IsInStock)

	_, err = f.orders.Cancel(f.ctx, m.buyer.ID, order.ID, "changed my mind")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	cancelled, err := f.orders.Cancel(f.ctx, m.seller.ID, order.ID, "item damaged")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "item damaged", cancelled.SellerNote)

	p := f.reloadProduct(m.product.ID)
	assert.Equal(t, 2, p.StockQuantity)
	assert.True(t, p.IsInStock)
	assert.Equal(t, 0, p.TotalOrders)
	assert.Equal(t, 0, f.reloadStore(m.store.ID).TotalOrders)

	_, err = f.orders.Cancel(f.ctx, m.seller.ID, order.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestBuyerCancelsPendingOrder(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 2)
	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)

	cancelled, err := f.orders.Cancel(f.ctx, m.buyer.ID, placed.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 2, f.reloadProduct(m.product.ID).StockQuantity)

	notes := f.pub.to(event.UserRoom(m.seller.ID), event.Notification)
	require.Len(t, notes, 2)
	assert.True(t, strings.HasPrefix(notes[1].data.(event.NotificationPayload).Title, "Order Cancelled"))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 20)
	for i := 0; i < 3; i++ {
		_, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
		require.NoError(t, err)
	}
	f.paidOrder(m, 1)

	page, err := f.orders.ListAsBuyer(f.ctx, m.buyer.ID, "", repository.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Orders, 2)
	assert.Greater(t, page.Orders[0].ID, page.Orders[1].ID)

	page, err = f.orders.ListAsSeller(f.ctx, m.seller.ID, model.OrderAwaitingApproval, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	_, err = f.orders.ListAsSeller(f.ctx, m.buyer.ID, "", repository.Page{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.orders.ListAsBuyer(f.ctx, m.buyer.ID, "shipped", repository.Page{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOutboxFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.box.err = assert.AnError
	m := f.market("10", 2)

	_, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)
	assert.Len(t, f.pub.to(event.UserRoom(m.seller.ID), event.Notification), 1)
}

// failingNotify refuses to record notifications for one user.
type failingNotify struct {
	NotificationService
	failFor uint
}

func (n failingNotify) Record(ctx context.Context, tx *gorm.DB, userID uint, title, message string,
	typ model.NotificationType, data model.JSONMap) (*model.Notification, error) {
	if userID == n.failFor {
		return nil, errors.New("notification store unavailable")
	}
	return n.NotificationService.Record(ctx, tx, userID, title, message, typ, data)
}

func (f *fixture) ordersWithNotify(notify NotificationService) OrderService {
	return NewOrderService(f.db, repository.NewOrderRepository(f.db), f.catalog, f.chat, notify, f.pub, logging.Discard())
}

func TestApproveRollsBackWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	order := f.paidOrder(m, 2)

	events := f.pub.count()
	msgs := f.countRows(&model.Message{}, "1 = 1")
	notes := f.countRows(&model.Notification{}, "1 = 1")

	orders := f.ordersWithNotify(failingNotify{NotificationService: f.notify, failFor: m.buyer.ID})
	_, err := orders.Approve(f.ctx, m.seller.ID, order.ID)
	require.Error(t, err)

	p := f.reloadProduct(m.product.ID)
	assert.Equal(t, 5, p.StockQuantity)
	assert.True(t, p.IsInStock)
	assert.Zero(t, p.TotalOrders)
	assert.Zero(t, f.reloadStore(m.store.ID).TotalOrders)
	assert.Equal(t, msgs, f.countRows(&model.Message{}, "1 = 1"))
	assert.Equal(t, notes, f.countRows(&model.Notification{}, "1 = 1"))
	assert.Equal(t, events, f.pub.count())

	got, err := f.orders.Get(f.ctx, m.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAwaitingApproval, got.Status)
	assert.Nil(t, got.ApprovedAt)

	// the same order still approves once notifications work again
	_, err = f.orders.Approve(f.ctx, m.seller.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, f.reloadProduct(m.product.ID).StockQuantity)
}

func TestConfirmPaymentRollsBackWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)

	events := f.pub.count()
	notes := f.countRows(&model.Notification{}, "1 = 1")

	orders := f.ordersWithNotify(failingNotify{NotificationService: f.notify, failFor: m.seller.ID})
	_, err = orders.ConfirmPayment(f.ctx, m.buyer.ID, placed.Order.ID)
	require.Error(t, err)

	assert.Zero(t, f.countRows(&model.Message{}, "1 = 1"))
	assert.Zero(t, f.countRows(&model.Chat{}, "1 = 1"))
	assert.Equal(t, notes, f.countRows(&model.Notification{}, "1 = 1"))
	assert.Equal(t, events, f.pub.count())

	got, err := f.orders.Get(f.ctx, m.buyer.ID, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPendingPayment, got.Status)
	assert.Nil(t, got.PaymentConfirmedAt)
}

func TestApprovalNotificationLinksChat(t *testing.T) {
	f := newFixture(t)
	m := f.market("10", 5)
	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID})
	require.NoError(t, err)
	conf, err := f.orders.ConfirmPayment(f.ctx, m.buyer.ID, placed.Order.ID)
	require.NoError(t, err)

	_, err = f.orders.Approve(f.ctx, m.seller.ID, placed.Order.ID)
	require.NoError(t, err)

	notes := f.pub.to(event.UserRoom(m.buyer.ID), event.Notification)
	require.NotEmpty(t, notes)
	data := notes[len(notes)-1].data.(event.NotificationPayload).Data
	assert.EqualValues(t, placed.Order.ID, data["order_id"])
	assert.EqualValues(t, conf.ChatID, data["chat_id"])
}
