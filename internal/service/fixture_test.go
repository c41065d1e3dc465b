package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"campusmart/internal/database"
	"campusmart/internal/event"
	"campusmart/internal/logging"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	room string
	name event.Name
	data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []emitted
}

func (p *recordingPublisher) Emit(room string, name event.Name, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, emitted{room: room, name: name, data: data})
}

func (p *recordingPublisher) to(room string, name event.Name) []emitted {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []emitted
	for _, e := range p.events {
		if e.room == room && e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type recordingOutbox struct {
	mu    sync.Mutex
	items []model.Notification
	err   error
}

func (o *recordingOutbox) Append(_ context.Context, n model.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.items = append(o.items, n)
	return nil
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
	pub *recordingPublisher
	box *recordingOutbox

	catalog repository.CatalogRepository

	notify  NotificationService
	chat    ChatService
	orders  OrderService
	reviews ReviewService
	admin   AdminService
	shop    CatalogService

	seq int
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	log := logging.Discard()
	pub := &recordingPublisher{}
	box := &recordingOutbox{}

	orderRepo := repository.NewOrderRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	chatRepo := repository.NewChatRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	notify := NewNotificationService(repository.NewNotificationRepository(db), pub, box, log)
	chat := NewChatService(db, chatRepo, catalogRepo, notify, pub, log)

	return &fixture{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		pub:     pub,
		box:     box,
		catalog: catalogRepo,
		notify:  notify,
		chat:    chat,
		orders:  NewOrderService(db, orderRepo, catalogRepo, chat, notify, pub, log),
		reviews: NewReviewService(db, reviewRepo, orderRepo, catalogRepo, notify, log),
		admin:   NewAdminService(db, orderRepo, reviewRepo, catalogRepo, repository.NewAdminRoleRepository(db), notify, log),
		shop:    NewCatalogService(catalogRepo),
	}
}

func (f *fixture) user(first string) *model.User {
	f.t.Helper()
	f.seq++
	u := &model.User{
		FirstName: first,
		LastName:  "Test",
		Email:     fmt.Sprintf("%s.%d@campus.test", first, f.seq),
		Role:      model.RoleUser,
		IsActive:  true,
	}
	require.NoError(f.t, f.catalog.CreateUser(f.ctx, nil, u))
	return u
}

func (f *fixture) store(owner *model.User) *model.Store {
	f.t.Helper()
	s := &model.Store{
		OwnerID:       owner.ID,
		Name:          owner.FirstName + "'s Store",
		IsActive:      true,
		BankName:      "Campus Bank",
		AccountNumber: "0123456789",
		AccountName:   owner.FullName(),
	}
	require.NoError(f.t, f.catalog.CreateStore(f.ctx, nil, s))
	return s
}

func (f *fixture) product(store *model.Store, price string, stock int) *model.Product {
	f.t.Helper()
	p := &model.Product{
		StoreID:       store.ID,
		Title:         "Desk Lamp",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsInStock:     stock > 0,
		IsActive:      true,
	}
	require.NoError(f.t, f.catalog.CreateProduct(f.ctx, nil, p))
	return p
}

func (f *fixture) reloadProduct(id uint) *model.Product {
	f.t.Helper()
	p, err := f.catalog.FindProduct(f.ctx, nil, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) reloadStore(id uint) *model.Store {
	f.t.Helper()
	s, err := f.catalog.FindStore(f.ctx, nil, id)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) countRows(m any, where string, args ...any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(m).Where(where, args...).Count(&n).Error)
	return n
}

// market is a buyer, a seller with a store and one product.
type market struct {
	buyer   *model.User
	seller  *model.User
	store   *model.Store
	product *model.Product
}

func (f *fixture) market(price string, stock int) market {
	buyer := f.user("Ada")
	seller := f.user("Sam")
	store := f.store(seller)
	return market{buyer: buyer, seller: seller, store: store, product: f.product(store, price, stock)}
}

// paidOrder places an order and confirms payment.
func (f *fixture) paidOrder(m market, qty int) *model.Order {
	f.t.Helper()
	placed, err := f.orders.Create(f.ctx, m.buyer.ID, CreateOrderInput{ProductID: m.product.ID, Quantity: qty})
	require.NoError(f.t, err)
	conf, err := f.orders.ConfirmPayment(f.ctx, m.buyer.ID, placed.Order.ID)
	require.NoError(f.t, err)
	return conf.Order
}
