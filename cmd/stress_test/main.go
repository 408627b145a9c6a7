package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/adapter/storage"
	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/core/service"
)

const (
	propertyID    = "stress-property"
	initialSupply = 20
	totalRequests = 50
	accountCash   = 1000000
)

// Hammers Buy with concurrent requests against the in-memory store and
// checks that exactly the available supply is sold and value is conserved.
func main() {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	cache := storage.NewMemoryCache()

	store.PutProperty(domain.Property{
		ID:              propertyID,
		Name:            "Stress Test Tower",
		TokenPrice:      decimal.NewFromInt(100),
		TokensAvailable: initialSupply,
	})
	store.PutAccount(domain.Account{
		ID:          "stress-account",
		CashBalance: decimal.NewFromInt(accountCash),
	})

	trades := service.NewTradeService(store, cache)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			requestID := fmt.Sprintf("stress-%d", id)
			_, err := trades.Buy(ctx, requestID, "stress-account", propertyID, 1)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Supply:   %d\n", initialSupply)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialSupply) && fail == int32(totalRequests-initialSupply) {
		fmt.Printf("PASS: Exactly %d buys succeeded, %d failed\n", initialSupply, totalRequests-initialSupply)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialSupply, totalRequests-initialSupply, success, fail)
	}

	property, _ := store.GetProperty(ctx, propertyID)
	account, _ := store.GetAccount(ctx, "stress-account")
	holding, _ := store.GetHolding(ctx, "stress-account", propertyID)

	fmt.Printf("Final Supply:     %d\n", property.TokensAvailable)
	fmt.Printf("Final Holding:    %d\n", holding.Quantity)
	fmt.Printf("Final Cash:       %s\n", account.CashBalance.StringFixed(2))

	spent := decimal.NewFromInt(accountCash).Sub(account.CashBalance)
	tokenValue := decimal.NewFromInt(100).Mul(decimal.NewFromInt(int64(holding.Quantity)))
	if property.TokensAvailable == 0 && spent.Equal(tokenValue) {
		fmt.Println("PASS: Supply depleted and cash spent matches token value")
	} else {
		fmt.Println("FAIL: Conservation violated")
	}
}
