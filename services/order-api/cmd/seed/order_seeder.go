// Order seeder with per-second outbound request throttling.
// - Concurrency is controlled by a fixed worker pool (maxConcurrentRequests)
// - Throughput is controlled by an RPS limiter (token bucket)
// - Uses a single shared HTTP client with keep-alives and timeouts
// - Graceful shutdown on SIGINT/SIGTERM
//
// Example:
//
//	go run ./services/order-api/cmd/seed \
//	  -noOfOrders=500 \
//	  -maxConcurrentRequests=20 \
//	  -rps=50 \
//	  -orderApiUrl=http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// --------- CLI flags ---------
var (
	noOfOrders            = flag.Int("noOfOrders", 100, "Total number of orders to seed")
	maxConcurrentRequests = flag.Int("maxConcurrentRequests", 10, "Max in-flight HTTP requests (worker pool size)")
	maxItemsPerOrder      = flag.Int("maxItemsPerOrder", 3, "Max distinct books per order (1..len(catalog))")
	orderApiURL           = flag.String("orderApiUrl", "http://localhost:8080", "Order API base URL")
	rps                   = flag.Int("rps", 50, "Global requests-per-second limit for outbound POST /orders")
	rpsBurst              = flag.Int("rpsBurst", 0, "Burst size for the limiter (0 => equals rps)")
	httpClientTimeoutMs   = flag.Int("httpClientTimeoutMs", 4000, "Total HTTP client timeout (ms)")
)

type book struct {
	isbn  string
	title string
	price int64
}

var catalog = []book{
	{"9780547328614", "Saxon Math 5/4", 85000},
	{"9781600517440", "Singapore Math Primary 3A", 42000},
	{"9780060935467", "To Kill a Mockingbird", 30000},
	{"9781603421447", "Handwriting Without Tears", 25000},
	{"9780393978698", "Story of the World Vol. 1", 55000},
	{"9781935570745", "Apologia General Science", 120000},
}

type Seeder struct {
	apiURL   string
	maxItems int
	rng      *rand.Rand
	rngMu    sync.Mutex

	// controls
	workers    int
	limiter    *rate.Limiter
	httpClient *http.Client
	ctx        context.Context
	logger     *zap.Logger

	// metrics
	enqueued int64
	sent     int64
	ok       int64
	fail     int64
}

func main() {
	flag.Parse()

	// logger
	pkg.InitLogger("order-seeder")
	logger := pkg.Logger
	defer func() { _ = logger.Sync() }()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *rps <= 0 {
		logger.Fatal("rps_must_be_positive")
	}
	burst := *rpsBurst
	if burst <= 0 {
		burst = *rps
	}

	seeder := &Seeder{
		apiURL:     *orderApiURL,
		maxItems:   min(max(*maxItemsPerOrder, 1), len(catalog)),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		workers:    *maxConcurrentRequests,
		limiter:    rate.NewLimiter(rate.Limit(*rps), burst),
		httpClient: utils.NewHTTPClient(
			utils.WithClientTimeout(time.Duration(*httpClientTimeoutMs)*time.Millisecond),
			utils.WithMaxConnsPerHost(*maxConcurrentRequests),
		),
		ctx:        ctx,
		logger:     logger,
	}

	start := time.Now()
	logger.Info("start_seeding",
		zap.Int("no_of_orders", *noOfOrders),
		zap.Int("workers", seeder.workers),
		zap.Int("rps", *rps),
		zap.Int("burst", burst),
	)

	seeder.Run(*noOfOrders)

	logger.Info("seeding_completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("enqueued", seeder.enqueued),
		zap.Int64("sent", seeder.sent),
		zap.Int64("success", seeder.ok),
		zap.Int64("failed", seeder.fail),
	)
	if seeder.fail > 0 {
		os.Exit(1)
	}
}

func (s *Seeder) Run(totalOrders int) {
	jobs := make(chan views.CreateOrderRequest, min(totalOrders, 1000)) // bounded buffer

	// progress reporter (1s)
	var wg sync.WaitGroup
	stopProg := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(1 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-stopProg:
				return
			case <-t.C:
				s.logger.Info("progress_tick",
					zap.Int64("enqueued", atomic.LoadInt64(&s.enqueued)),
					zap.Int64("sent", atomic.LoadInt64(&s.sent)),
					zap.Int64("success", atomic.LoadInt64(&s.ok)),
					zap.Int64("failed", atomic.LoadInt64(&s.fail)),
				)
			}
		}
	}()

	// workers
	var workersWG sync.WaitGroup
	workersWG.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			defer workersWG.Done()
			for j := range jobs {
				// throttle by RPS before sending the request
				if err := s.limiter.Wait(s.ctx); err != nil {
					s.logger.Warn("limiter_wait_interrupted", zap.Error(err))
					return
				}
				s.sendOrder(j)
			}
		}()
	}

enqueue:
	for i := 0; i < totalOrders; i++ {
		select {
		case <-s.ctx.Done():
			break enqueue
		case jobs <- s.buildOrder(i):
			atomic.AddInt64(&s.enqueued, 1)
		}
	}

	// drain
	close(jobs)
	workersWG.Wait()
	close(stopProg)
	wg.Wait()
}

// buildOrder picks distinct books from the catalog; the total always equals the item sum.
func (s *Seeder) buildOrder(n int) views.CreateOrderRequest {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	picks := s.rng.Perm(len(catalog))[:1+s.rng.Intn(s.maxItems)]
	req := views.CreateOrderRequest{
		ParentName:  fmt.Sprintf("Seed Parent %d", n),
		ParentEmail: fmt.Sprintf("seed.parent+%d@example.com", n),
	}
	for _, idx := range picks {
		b := catalog[idx]
		qty := 1 + s.rng.Intn(3)
		req.Items = append(req.Items, views.OrderItemRequest{ISBN: b.isbn, Title: b.title, Quantity: qty, UnitPrice: b.price})
		req.TotalAmount += int64(qty) * b.price
	}
	return req
}

func (s *Seeder) sendOrder(reqBody views.CreateOrderRequest) {
	start := time.Now()
	atomic.AddInt64(&s.sent, 1)

	// build request
	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.apiURL+"/api/v1/orders", bytes.NewBuffer(body))
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("build_request_failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pkg.HeaderRequestId, uuid.New().String())

	// send
	resp, err := s.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("api_call_failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	lat := time.Since(start)
	if resp.StatusCode != http.StatusCreated {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("api_call_failed",
			zap.String("parent_email", reqBody.ParentEmail),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("latency", lat),
		)
		return
	}

	atomic.AddInt64(&s.ok, 1)
	s.logger.Debug("api_call_completed",
		zap.String(pkg.TraceId, resp.Header.Get(pkg.HeaderTraceId)),
		zap.Duration("latency", lat),
	)
}
