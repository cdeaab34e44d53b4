package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cgast/contr/internal/config"
	"github.com/cgast/contr/internal/inspector"
	"github.com/cgast/contr/pkg/contract"
	"github.com/cgast/contr/pkg/events"
	"github.com/cgast/contr/pkg/pool"
)

type order struct {
	Items    []int `json:"items"`
	Discount int   `json:"discount"`
}

// orderTotal is the guarded operation. A discount larger than the items
// yields a negative total, which the demo contract catches.
func orderTotal(o order) (int, error) {
	if len(o.Items) == 0 {
		return 0, errors.New("empty order")
	}
	total := -o.Discount
	for _, item := range o.Items {
		total += item
	}
	return total, nil
}

// orderContract is the sample contract the demo checks orders against.
var orderContract = contract.Define("OrderContract").
	Guarantee("total is not negative", contract.Func2(func(_ []any, result any) bool {
		return result.(int) >= 0
	})).
	Guarantee("discount is not negative", contract.Func1(func(args []any) bool {
		return args[0].(order).Discount >= 0
	})).
	Expect("small order", contract.Func2(func(_ []any, result any) bool {
		return result.(int) < 1000
	})).
	Expect("discounted order", contract.Func1(func(args []any) bool {
		return args[0].(order).Discount > 0
	}))

// asyncOrderContract inherits every rule and runs its checks off the
// calling goroutine.
var asyncOrderContract = orderContract.Extend("AsyncOrderContract")

var demoOrders = []order{
	{Items: []int{10, 20}, Discount: 5},
	{Items: []int{10, 20}, Discount: 50},
	{Items: []int{900, 300}},
	{Items: []int{1}, Discount: -1},
	{},
}

// handleDemo implements `contr demo [--inspector]`.
func handleDemo(cfg config.Config) error {
	bus := events.NewMemoryBus(0)
	rt, err := config.Build(cfg, bus)
	if err != nil {
		return err
	}
	defer rt.Close()

	port := detectInspectorPort(cfg, os.Args[2:])
	if port > 0 {
		srv := inspector.New(bus, rt.Store)
		defer srv.Close()
		srv.StartAsync(port)
		fmt.Fprintf(os.Stderr, "Inspector running at http://localhost:%d\n", port)
	}

	ctx := context.Background()

	syncContract, err := orderContract.New(rt.Options...)
	if err != nil {
		return fmt.Errorf("build contract: %w", err)
	}
	fmt.Fprintf(os.Stderr, "=== %s (sync) ===\n", syncContract.Name())
	for _, o := range demoOrders {
		total, err := contract.Run(ctx, syncContract, []any{o}, func() (int, error) {
			return orderTotal(o)
		})
		report(o, total, err)
	}

	asyncContract, err := asyncOrderContract.New(rt.Options...)
	if err != nil {
		return fmt.Errorf("build contract: %w", err)
	}
	mainPool := asyncContract.MainPool()
	baseline := mainPool.Stats().Completed
	submitted := 0

	fmt.Fprintf(os.Stderr, "=== %s (async) ===\n", asyncContract.Name())
	for _, o := range demoOrders {
		total, err := contract.RunAsync(ctx, asyncContract, []any{o}, func() (int, error) {
			return orderTotal(o)
		})
		if err == nil {
			submitted++
		}
		report(o, total, err)
	}
	if err := waitForChecks(mainPool, baseline+int64(submitted), 10*time.Second); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d event(s) published\n", len(bus.History(time.Time{})))
	if port > 0 {
		fmt.Fprintln(os.Stderr, "Press Ctrl-C to stop the inspector.")
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()
	}
	return nil
}

func report(o order, total int, err error) {
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "  %v -> %d\n", o, total)
	case errors.Is(err, contract.ErrGuaranteesNotMatched), errors.Is(err, contract.ErrExpectationsNotMatched):
		fmt.Fprintf(os.Stderr, "  %v -> %d, violated: %v\n", o, total, err)
	default:
		fmt.Fprintf(os.Stderr, "  %v -> operation error: %v\n", o, err)
	}
}

// waitForChecks blocks until the pool has completed want tasks in total.
func waitForChecks(p pool.Pool, want int64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for p.Stats().Completed < want {
		if time.Now().After(deadline) {
			return fmt.Errorf("async checks did not finish within %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
