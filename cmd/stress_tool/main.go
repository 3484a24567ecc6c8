package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
	"order_core/internal/pkg/config"
	"order_core/pkg/database"
	"order_core/pkg/logger"
	"order_core/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tally struct {
	mu    sync.Mutex
	codes map[int]int
	errs  int
}

func (t *tally) add(r *apiResponse, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.errs++
		return
	}
	t.codes[r.Code]++
}

func (t *tally) print() {
	keys := make([]int, 0, len(t.codes))
	for k := range t.codes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Printf("  code %-6d %d\n", k, t.codes[k])
	}
	if t.errs > 0 {
		fmt.Printf("  transport errors %d\n", t.errs)
	}
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "server address")
		scenario = flag.String("scenario", "claim", "claim | order")
		users    = flag.Int("users", 1000, "concurrent users")
		supply   = flag.Int("supply", 10, "coupon tickets (claim) or stock units (order)")
	)
	flag.Parse()

	config.LoadConfig()
	cfg := config.GlobalConfig
	if err := logger.InitLogger(cfg.App.Env, false); err != nil {
		panic(err)
	}

	db, err := database.InitDatabase(cfg.Database, false)
	if err != nil {
		logger.Log.Fatal("database init failed", zap.Error(err))
	}

	ctx := context.Background()
	client := newAPIClient(*baseURL, cfg.JWT.Secret, *users)

	switch *scenario {
	case "claim":
		err = runClaim(ctx, db, client, *users, *supply)
	case "order":
		err = runOrder(ctx, db, client, *users, *supply)
	default:
		err = fmt.Errorf("unknown scenario %q", *scenario)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runClaim N 个用户并发抢 supply 张券，成功数必须等于 min(N, supply)
func runClaim(ctx context.Context, db *gorm.DB, c *apiClient, n, supply int) error {
	ids, err := seedUsers(ctx, db, n, 0)
	if err != nil {
		return err
	}

	var campaign struct {
		ID string `json:"id"`
	}
	now := time.Now()
	r, err := c.call("POST", "/coupons", "stress-admin", utils.RoleAdmin, map[string]interface{}{
		"name":          "stress",
		"totalTickets":  supply,
		"discountType":  "FIXED",
		"discountValue": 100,
		"validFrom":     now.Add(-time.Minute),
		"validUntil":    now.Add(time.Hour),
	}, &campaign)
	if err != nil {
		return err
	}
	if r.Code != 0 {
		return fmt.Errorf("create campaign: %d %s", r.Code, r.Message)
	}

	fmt.Printf("claim: %d users vs %d tickets (campaign %s)\n", n, supply, campaign.ID)
	t := &tally{codes: map[int]int{}}
	elapsed := fanOut(ids, func(uid string) {
		t.add(c.call("POST", "/coupons/"+campaign.ID+"/claim", uid, utils.RoleUser, nil, nil))
	})

	report(n, elapsed, t)
	want := supply
	if n < supply {
		want = n
	}
	if t.codes[0] != want {
		return fmt.Errorf("granted %d, want %d", t.codes[0], want)
	}
	return nil
}

// runOrder N 个用户并发预占 + 下单，成交件数不得超过库存
func runOrder(ctx context.Context, db *gorm.DB, c *apiClient, n, supply int) error {
	const price = 100
	ids, err := seedUsers(ctx, db, n, price*10)
	if err != nil {
		return err
	}
	sku, err := seedProduct(ctx, db, price, int64(supply))
	if err != nil {
		return err
	}

	fmt.Printf("order: %d users vs %d units of %s\n", n, supply, sku)
	lines := []map[string]interface{}{{"skuId": sku, "quantity": 1}}
	reserveTally := &tally{codes: map[int]int{}}
	orderTally := &tally{codes: map[int]int{}}

	elapsed := fanOut(ids, func(uid string) {
		var out struct {
			CheckoutID string `json:"checkoutId"`
		}
		r, err := c.call("POST", "/reservations", uid, utils.RoleUser, map[string]interface{}{"lines": lines}, &out)
		reserveTally.add(r, err)
		if err != nil || r.Code != 0 {
			return
		}
		orderTally.add(c.call("POST", "/orders", uid, utils.RoleUser, map[string]interface{}{
			"checkoutId":      out.CheckoutID,
			"shippingAddress": "stress lane 1",
			"lines":           lines,
		}, nil))
	})

	fmt.Println("reservations:")
	reserveTally.print()
	report(n, elapsed, orderTally)

	left, err := stockOf(ctx, db, sku)
	if err != nil {
		return err
	}
	sold := orderTally.codes[0]
	fmt.Printf("sold %d, stock left %d\n", sold, left)
	if int64(sold)+left != int64(supply) {
		return fmt.Errorf("stock drift: sold %d + left %d != %d", sold, left, supply)
	}
	return nil
}

func fanOut(ids []string, fn func(uid string)) time.Duration {
	var wg sync.WaitGroup
	start := time.Now()
	for _, id := range ids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			fn(uid)
		}(id)
	}
	wg.Wait()
	return time.Since(start)
}

func report(n int, elapsed time.Duration, t *tally) {
	fmt.Println("--------------------------------------------------")
	fmt.Printf("elapsed %v, qps %.2f\n", elapsed, float64(n)/elapsed.Seconds())
	t.print()
	fmt.Println("--------------------------------------------------")
}
