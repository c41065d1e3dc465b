package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusmart/internal/apperr"
	"campusmart/internal/event"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultRejectReason = "Payment not confirmed"

type CreateOrderInput struct {
	ProductID uint
	Quantity  int
	Note      string
}

// PlacedOrder is returned at checkout so the buyer knows where to pay.
type PlacedOrder struct {
	Order       *model.Order      `json:"order"`
	BankDetails model.BankDetails `json:"bank_details"`
}

// PaymentConfirmation points the buyer at the chat holding the receipt.
type PaymentConfirmation struct {
	Order  *model.Order `json:"order"`
	ChatID uint         `json:"chat_id"`
}

type OrderPage struct {
	Orders []model.Order `json:"orders"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
	Total  int64         `json:"total"`
	Pages  int           `json:"pages"`
}

type OrderService interface {
	Create(ctx context.Context, buyerID uint, in CreateOrderInput) (*PlacedOrder, error)
	ConfirmPayment(ctx context.Context, buyerID, orderID uint) (*PaymentConfirmation, error)
	Approve(ctx context.Context, sellerID, orderID uint) (*model.Order, error)
	Reject(ctx context.Context, sellerID, orderID uint, reason string) (*model.Order, error)
	Complete(ctx context.Context, buyerID, orderID uint) (*model.Order, error)
	Cancel(ctx context.Context, actorID, orderID uint, reason string) (*model.Order, error)
	Get(ctx context.Context, userID, orderID uint) (*model.Order, error)
	ListAsBuyer(ctx context.Context, buyerID uint, status model.OrderStatus, page repository.Page) (*OrderPage, error)
	ListAsSeller(ctx context.Context, sellerID uint, status model.OrderStatus, page repository.Page) (*OrderPage, error)
}

type orderServiceImpl struct {
	db      *gorm.DB
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	chat    ChatService
	notify  NotificationService
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time
}

func NewOrderService(db *gorm.DB, orders repository.OrderRepository, catalog repository.CatalogRepository,
	chat ChatService, notify NotificationService, pub Publisher, log *slog.Logger) OrderService {
	if pub == nil {
		pub = NopPublisher
	}
	return &orderServiceImpl{
		db:      db,
		orders:  orders,
		catalog: catalog,
		chat:    chat,
		notify:  notify,
		pub:     pub,
		log:     log,
		now:     time.Now,
	}
}

// outcome collects what a committed transition still has to announce.
type outcome struct {
	orderID   uint
	buyerID   uint
	ownerID   uint
	statusSet bool
	messages  []announcement
	notes     []*model.Notification
}

type announcement struct {
	msg       model.Message
	recipient uint
}

func (o *outcome) post(msg *model.Message, recipient uint) {
	if msg != nil {
		o.messages = append(o.messages, announcement{msg: *msg, recipient: recipient})
	}
}

// publish runs after commit. Nothing here can fail the operation.
func (s *orderServiceImpl) publish(ctx context.Context, o *outcome) *model.Order {
	order, err := s.orders.FindDetailed(ctx, nil, o.orderID)
	if err != nil {
		s.log.Warn("reload order after commit", slog.Uint64("order_id", uint64(o.orderID)), slog.Any("err", err))
	}
	if o.statusSet && order != nil {
		payload := event.OrderStatusPayload{OrderID: order.ID, Status: order.Status, Order: order}
		s.pub.Emit(event.UserRoom(o.buyerID), event.OrderStatusUpdate, payload)
		s.pub.Emit(event.UserRoom(o.ownerID), event.OrderStatusUpdate, payload)
	}
	for _, a := range o.messages {
		s.chat.Announce(a.msg, a.recipient)
	}
	s.notify.Deliver(ctx, o.notes...)
	return order
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("200601021504"), suffix)
}

func (s *orderServiceImpl) Create(ctx context.Context, buyerID uint, in CreateOrderInput) (*PlacedOrder, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	if in.ProductID == 0 {
		return nil, apperr.Validation("product_id is required")
	}

	var (
		order *model.Order
		bank  model.BankDetails
		o     = &outcome{}
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.catalog.FindProduct(ctx, tx, in.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive || product.Store == nil {
			return apperr.NotFound("product not found")
		}
		if product.Store.OwnerID == buyerID {
			return apperr.InvalidState("cannot order from your own store")
		}
		if !product.IsInStock || product.StockQuantity < in.Quantity {
			return apperr.Conflict("only %d left in stock", max(product.StockQuantity, 0))
		}
		buyer, err := s.catalog.FindUser(ctx, tx, buyerID)
		if err != nil {
			return err
		}

		total := product.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		order = &model.Order{
			OrderNumber: newOrderNumber(s.now()),
			BuyerID:     buyerID,
			StoreID:     product.StoreID,
			ProductID:   product.ID,
			Quantity:    in.Quantity,
			UnitPrice:   product.Price,
			TotalPrice:  total,
			Status:      model.OrderPendingPayment,
			BuyerNote:   strings.TrimSpace(in.Note),
		}
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		note, err := s.notify.Record(ctx, tx, product.Store.OwnerID, "New Order! 🛒",
			fmt.Sprintf("%s placed an order for %s (×%d). Total: %s",
				buyer.FirstName, product.Title, in.Quantity, naira(total, 0)),
			model.NotifyOrder, model.JSONMap{"order_id": order.ID})
		if err != nil {
			return err
		}
		o.orderID, o.buyerID, o.ownerID = order.ID, buyerID, product.Store.OwnerID
		o.notes = append(o.notes, note)
		bank = product.Store.Bank()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if detailed := s.publish(ctx, o); detailed != nil {
		order = detailed
	}
	return &PlacedOrder{Order: order, BankDetails: bank}, nil
}

func (s *orderServiceImpl) ConfirmPayment(ctx context.Context, buyerID, orderID uint) (*PaymentConfirmation, error) {
	var (
		chatID uint
		o      = &outcome{orderID: orderID, statusSet: true}
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return apperr.Forbidden("only the buyer can confirm payment")
		}
		if order.Status != model.OrderPendingPayment {
			return apperr.InvalidState("order is %s, expected %s", order.Status, model.OrderPendingPayment)
		}
		now := s.now()
		if err := s.orders.UpdateStatusIf(ctx, tx, order.ID, model.OrderPendingPayment, model.OrderAwaitingApproval,
			map[string]any{"payment_confirmed_at": now}); err != nil {
			return err
		}

		product, err := s.catalog.FindProduct(ctx, tx, order.ProductID)
		if err != nil {
			return err
		}
		store, err := s.catalog.FindStore(ctx, tx, order.StoreID)
		if err != nil {
			return err
		}
		buyer, err := s.catalog.FindUser(ctx, tx, buyerID)
		if err != nil {
			return err
		}

		productID := order.ProductID
		chat, err := s.chat.FindOrCreate(ctx, tx, buyerID, store.OwnerID, &productID)
		if err != nil {
			return err
		}
		chatID = chat.ID

		receipt := fmt.Sprintf("📧 PAYMENT RECEIPT\n\nOrder: #%s\nProduct: %s\nQuantity: %d\nAmount: %s\n\n"+
			"Status: Awaiting your approval\nBuyer: %s\n\nPlease verify and approve/reject this payment.",
			order.OrderNumber, product.Title, order.Quantity, naira(order.TotalPrice, 2), buyer.FullName())
		msg, err := s.chat.AppendSystem(ctx, tx, chat.ID, buyerID, receipt, order.ID)
		if err != nil {
			return err
		}

		note, err := s.notify.Record(ctx, tx, store.OwnerID, "Payment Received",
			fmt.Sprintf("%s has made payment for order #%s. Please verify and approve.", buyer.FirstName, order.OrderNumber),
			model.NotifyOrder, model.JSONMap{"order_id": order.ID, "chat_id": chat.ID})
		if err != nil {
			return err
		}

		o.buyerID, o.ownerID = buyerID, store.OwnerID
		o.post(msg, store.OwnerID)
		o.notes = append(o.notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PaymentConfirmation{Order: s.publish(ctx, o), ChatID: chatID}, nil
}

// sellerOrder loads the order and checks that actorID owns its store.
func (s *orderServiceImpl) sellerOrder(ctx context.Context, tx *gorm.DB, actorID, orderID uint) (*model.Order, *model.Store, error) {
	order, err := s.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	store, err := s.catalog.FindStore(ctx, tx, order.StoreID)
	if err != nil {
		return nil, nil, err
	}
	if store.OwnerID != actorID {
		return nil, nil, apperr.Forbidden("only the store owner can do this")
	}
	return order, store, nil
}

func (s *orderServiceImpl) Approve(ctx context.Context, sellerID, orderID uint) (*model.Order, error) {
	o := &outcome{orderID: orderID, statusSet: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, store, err := s.sellerOrder(ctx, tx, sellerID, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderAwaitingApproval {
			return apperr.InvalidState("order is %s, expected %s", order.Status, model.OrderAwaitingApproval)
		}
		if err := s.orders.UpdateStatusIf(ctx, tx, order.ID, model.OrderAwaitingApproval, model.OrderApproved,
			map[string]any{"approved_at": s.now()}); err != nil {
			return err
		}
		if err := s.catalog.ApplyApproval(ctx, tx, order.ProductID, order.StoreID, order.Quantity); err != nil {
			return err
		}

		data := model.JSONMap{"order_id": order.ID}
		chat, err := s.chat.Between(ctx, tx, order.BuyerID, sellerID)
		if err != nil {
			return err
		}
		if chat != nil {
			data["chat_id"] = chat.ID
			msg, err := s.chat.AppendSystem(ctx, tx, chat.ID, sellerID,
				fmt.Sprintf("✅ PAYMENT APPROVED\n\nOrder #%s has been approved!\n\n"+
					"Your order is ready for pickup. Please contact the seller to arrange pickup.", order.OrderNumber),
				order.ID)
			if err != nil {
				return err
			}
			o.post(msg, order.BuyerID)
		}

		seller, err := s.catalog.FindUser(ctx, tx, sellerID)
		if err != nil {
			return err
		}
		note, err := s.notify.Record(ctx, tx, order.BuyerID, "Payment Approved! ✅",
			fmt.Sprintf("Your payment for order #%s has been approved by %s. Your order is ready for pickup!",
				order.OrderNumber, seller.FirstName),
			model.NotifyOrder, data)
		if err != nil {
			return err
		}
		o.buyerID, o.ownerID = order.BuyerID, store.OwnerID
		o.notes = append(o.notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, o), nil
}

func (s *orderServiceImpl) Reject(ctx context.Context, sellerID, orderID uint, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectReason
	}
	o := &outcome{orderID: orderID, statusSet: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, store, err := s.sellerOrder(ctx, tx, sellerID, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderAwaitingApproval {
			return apperr.InvalidState("order is %s, expected %s", order.Status, model.OrderAwaitingApproval)
		}
		if err := s.orders.UpdateStatusIf(ctx, tx, order.ID, model.OrderAwaitingApproval, model.OrderRejected,
			map[string]any{"seller_note": reason}); err != nil {
			return err
		}

		chat, err := s.chat.Between(ctx, tx, order.BuyerID, sellerID)
		if err != nil {
			return err
		}
		if chat != nil {
			msg, err := s.chat.AppendSystem(ctx, tx, chat.ID, sellerID,
				fmt.Sprintf("❌ PAYMENT REJECTED\n\nOrder #%s has been rejected.\n\nReason: %s\n\n"+
					"Please contact the seller for more information.", order.OrderNumber, reason),
				order.ID)
			if err != nil {
				return err
			}
			o.post(msg, order.BuyerID)
		}

		note, err := s.notify.Record(ctx, tx, order.BuyerID, "Payment Rejected ❌",
			fmt.Sprintf("Your payment for order #%s was rejected. Reason: %s", order.OrderNumber, reason),
			model.NotifyOrder, model.JSONMap{"order_id": order.ID})
		if err != nil {
			return err
		}
		o.buyerID, o.ownerID = order.BuyerID, store.OwnerID
		o.notes = append(o.notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, o), nil
}

func (s *orderServiceImpl) Complete(ctx context.Context, buyerID, orderID uint) (*model.Order, error) {
	o := &outcome{orderID: orderID, statusSet: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return apperr.Forbidden("only the buyer can complete the order")
		}
		if order.Status != model.OrderApproved {
			return apperr.InvalidState("order is %s, expected %s", order.Status, model.OrderApproved)
		}
		if err := s.orders.UpdateStatusIf(ctx, tx, order.ID, model.OrderApproved, model.OrderCompleted,
			map[string]any{"completed_at": s.now()}); err != nil {
			return err
		}
		store, err := s.catalog.FindStore(ctx, tx, order.StoreID)
		if err != nil {
			return err
		}
		buyer, err := s.catalog.FindUser(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		note, err := s.notify.Record(ctx, tx, store.OwnerID, "Order Completed ✅",
			fmt.Sprintf("%s confirmed receipt of order #%s.", buyer.FirstName, order.OrderNumber),
			model.NotifyOrder, model.JSONMap{"order_id": order.ID})
		if err != nil {
			return err
		}
		o.buyerID, o.ownerID = buyerID, store.OwnerID
		o.notes = append(o.notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, o), nil
}

// buyerCancellable are the states a buyer may still back out of.
var buyerCancellable = map[model.OrderStatus]bool{
	model.OrderPendingPayment:   true,
	model.OrderAwaitingApproval: true,
}

func (s *orderServiceImpl) Cancel(ctx context.Context, actorID, orderID uint, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	o := &outcome{orderID: orderID, statusSet: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		store, err := s.catalog.FindStore(ctx, tx, order.StoreID)
		if err != nil {
			return err
		}
		isBuyer, isOwner := order.BuyerID == actorID, store.OwnerID == actorID
		if !isBuyer && !isOwner {
			return apperr.Forbidden("not a party to this order")
		}
		if order.Status.Terminal() {
			return apperr.InvalidState("order is already %s", order.Status)
		}
		if !isOwner && !buyerCancellable[order.Status] {
			return apperr.InvalidState("order is %s and can only be cancelled by the seller", order.Status)
		}

		fields := map[string]any{"cancelled_at": s.now()}
		if reason != "" {
			if isOwner {
				fields["seller_note"] = reason
			} else {
				fields["buyer_note"] = reason
			}
		}
		if err := s.orders.UpdateStatusIf(ctx, tx, order.ID, order.Status, model.OrderCancelled, fields); err != nil {
			return err
		}
		if order.Status == model.OrderApproved {
			if err := s.catalog.RevertApproval(ctx, tx, order.ProductID, order.StoreID, order.Quantity); err != nil {
				return err
			}
		}

		recipient := store.OwnerID
		if isOwner {
			recipient = order.BuyerID
		}
		text := fmt.Sprintf("Order #%s has been cancelled.", order.OrderNumber)
		if reason != "" {
			text += " Reason: " + reason
		}

		chat, err := s.chat.Between(ctx, tx, order.BuyerID, store.OwnerID)
		if err != nil {
			return err
		}
		if chat != nil {
			msg, err := s.chat.AppendSystem(ctx, tx, chat.ID, actorID, "🚫 ORDER CANCELLED\n\n"+text, order.ID)
			if err != nil {
				return err
			}
			o.post(msg, recipient)
		}

		note, err := s.notify.Record(ctx, tx, recipient, "Order Cancelled", text,
			model.NotifyOrder, model.JSONMap{"order_id": order.ID})
		if err != nil {
			return err
		}
		o.buyerID, o.ownerID = order.BuyerID, store.OwnerID
		o.notes = append(o.notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, o), nil
}

func (s *orderServiceImpl) Get(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orders.FindDetailed(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && (order.Store == nil || order.Store.OwnerID != userID) {
		return nil, apperr.Forbidden("not a party to this order")
	}
	return order, nil
}

func (s *orderServiceImpl) ListAsBuyer(ctx context.Context, buyerID uint, status model.OrderStatus, page repository.Page) (*OrderPage, error) {
	return s.list(ctx, repository.OrderQuery{BuyerID: buyerID, Status: status, Page: page})
}

func (s *orderServiceImpl) ListAsSeller(ctx context.Context, sellerID uint, status model.OrderStatus, page repository.Page) (*OrderPage, error) {
	store, err := s.catalog.FindStoreByOwner(ctx, nil, sellerID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.OrderQuery{StoreID: store.ID, Status: status, Page: page})
}

func (s *orderServiceImpl) list(ctx context.Context, q repository.OrderQuery) (*OrderPage, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", q.Status)
	}
	q.Page = q.Page.Normalize(20)
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return &OrderPage{
		Orders: orders,
		Page:   q.Page.Page,
		Limit:  q.Page.Limit,
		Total:  total,
		Pages:  q.Page.Pages(total),
	}, nil
}
