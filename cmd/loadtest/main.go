package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"campusmart/internal/auth"
	"campusmart/internal/config"
	"campusmart/internal/database"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is one HTTP round trip.
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// The tool seeds a seller, a product and buyers straight into the server's
// database (same DB_DRIVER/DB_DSN), signs tokens with the same JWT_SECRET,
// then drives the order flow over HTTP.
func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	nBuyers := flag.Int("buyers", 50, "distinct buyers placing orders")
	stock := flag.Int("stock", 20, "initial product stock")
	racers := flag.Int("racers", 30, "concurrent approve calls on one order")
	concurrency := flag.Int("c", 20, "max concurrency")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		fail("db: %v", err)
	}
	catalog := repository.NewCatalogRepository(db)
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Hour)
	ctx := context.Background()
	run := uuid.NewString()[:8]

	seller := seedUser(ctx, catalog, tokens, "seller-"+run)
	store := &model.Store{
		OwnerID:       seller.user.ID,
		Name:          "Loadtest " + run,
		IsActive:      true,
		BankName:      "Campus Bank",
		AccountNumber: "0000000000",
		AccountName:   "Load Test",
	}
	if err := catalog.CreateStore(ctx, nil, store); err != nil {
		fail("seed store: %v", err)
	}
	product := &model.Product{
		StoreID:       store.ID,
		Title:         "Loadtest item " + run,
		Price:         decimal.NewFromInt(1500),
		StockQuantity: *stock,
		IsInStock:     *stock > 0,
		IsActive:      true,
	}
	if err := catalog.CreateProduct(ctx, nil, product); err != nil {
		fail("seed product: %v", err)
	}
	buyers := make([]seeded, *nBuyers)
	for i := range buyers {
		buyers[i] = seedUser(ctx, catalog, tokens, fmt.Sprintf("buyer-%s-%d", run, i))
	}
	fmt.Printf("seeded run=%s product=%d stock=%d buyers=%d\n", run, product.ID, *stock, *nBuyers)

	client := &http.Client{Timeout: 5 * time.Second}

	// 1) every buyer places an order and confirms payment
	orderIDs := make([]uint, len(buyers))
	placeResults := fanOut(len(buyers), *concurrency, func(i int) Result {
		res, id := placeAndPay(client, *baseURL, buyers[i].token, product.ID)
		orderIDs[i] = id
		return res
	})
	printSummary("place+pay", placeResults)

	// 2) the seller approves everything concurrently. Approvals past zero
	// stock still succeed and the product flips out of stock; with Redis on,
	// calls beyond RATE_LIMIT come back 429.
	approveResults := fanOut(len(orderIDs), *concurrency, func(i int) Result {
		if orderIDs[i] == 0 {
			return Result{Err: fmt.Errorf("no order")}
		}
		return post(client, fmt.Sprintf("%s/api/v1/orders/%d/approve", *baseURL, orderIDs[i]), seller.token, nil)
	})
	printSummary("approve", approveResults)

	// 3) approve race: one paid order, many concurrent approvals, one winner
	racer := seedUser(ctx, catalog, tokens, "racer-"+run)
	res, raceOrder := placeAndPay(client, *baseURL, racer.token, product.ID)
	if raceOrder == 0 {
		fail("race order: status=%d body=%s err=%v", res.Status, res.Body, res.Err)
	}
	raceResults := fanOut(*racers, *racers, func(int) Result {
		return post(client, fmt.Sprintf("%s/api/v1/orders/%d/approve", *baseURL, raceOrder), seller.token, nil)
	})
	printSummary("approve race", raceResults)

	final, err := catalog.FindProduct(ctx, nil, product.ID)
	if err != nil {
		fail("reload product: %v", err)
	}
	fmt.Printf("final stock=%d in_stock=%v total_orders=%d\n", final.StockQuantity, final.IsInStock, final.TotalOrders)
}

type seeded struct {
	user  *model.User
	token string
}

func seedUser(ctx context.Context, catalog repository.CatalogRepository, tokens *auth.TokenManager, name string) seeded {
	u := &model.User{
		FirstName: name,
		LastName:  "Load",
		Email:     name + "@loadtest.invalid",
		Role:      model.RoleUser,
		IsActive:  true,
	}
	if err := catalog.CreateUser(ctx, nil, u); err != nil {
		fail("seed user %s: %v", name, err)
	}
	tok, err := tokens.Issue(u.ID)
	if err != nil {
		fail("issue token: %v", err)
	}
	return seeded{user: u, token: tok}
}

// placeAndPay returns the confirm-payment result and the order id (0 on failure).
func placeAndPay(client *http.Client, baseURL, token string, productID uint) (Result, uint) {
	res := post(client, baseURL+"/api/v1/orders", token, map[string]any{"product_id": productID, "quantity": 1})
	if res.Err != nil || res.Status != http.StatusCreated {
		return res, 0
	}
	var env envelope
	var placed struct {
		Order struct {
			ID uint `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return Result{Err: err}, 0
	}
	if err := json.Unmarshal(env.Data, &placed); err != nil {
		return Result{Err: err}, 0
	}
	res = post(client, fmt.Sprintf("%s/api/v1/orders/%d/confirm-payment", baseURL, placed.Order.ID), token, nil)
	if res.Err != nil || res.Status != http.StatusOK {
		return res, 0
	}
	return res, placed.Order.ID
}

func fanOut(n, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}
	wg.Wait()
	return results
}

func post(client *http.Client, url, token string, body any) Result {
	var r io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

// printSummary prints the status code distribution.
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	codes := make([]int, 0, len(count))
	for code := range count {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, count[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "loadtest: "+format+"\n", args...)
	os.Exit(1)
}
