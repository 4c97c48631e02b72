// Command autoswingtrade-ctl is an operator CLI for a running
// autoswingtrade server.
//
// Usage:
//
//	autoswingtrade-ctl [-server URL] status
//	autoswingtrade-ctl [-server URL] positions
//	autoswingtrade-ctl [-server URL] orders
//	autoswingtrade-ctl [-server URL] trades [-symbol SYM] [-days N]
//	autoswingtrade-ctl [-server URL] stats [-days N]
//	autoswingtrade-ctl [-server URL] buy -symbol SYM -qty N -price P [-stop P] [-target P] [-reason S]
//	autoswingtrade-ctl [-server URL] sell -symbol SYM -qty N -price P [-reason S]
//	autoswingtrade-ctl [-server URL] pause [-reason S]
//	autoswingtrade-ctl [-server URL] resume
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tgparkk/autoswingtrade/pkg/autoswingtrade"
)

func main() {
	server := flag.String("server", "http://localhost:8700", "autoswingtrade server URL")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := autoswingtrade.NewClient(*server)
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(ctx, c)
	case "positions":
		err = runPositions(ctx, c)
	case "orders":
		err = runOrders(ctx, c)
	case "trades":
		err = runTrades(ctx, c, args)
	case "stats":
		err = runStats(ctx, c, args)
	case "buy":
		err = runIntent(ctx, c, "buy", args)
	case "sell":
		err = runIntent(ctx, c, "sell", args)
	case "pause":
		err = runPause(ctx, c, args)
	case "resume":
		err = runResume(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStatus(ctx context.Context, c *autoswingtrade.Client) error {
	st, err := c.GetStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("running:    %v\n", st.Running)
	fmt.Printf("paused:     %v", st.Paused)
	if st.PauseReason != "" {
		fmt.Printf(" (%s)", st.PauseReason)
	}
	fmt.Println()
	fmt.Printf("market:     open=%v\n", st.MarketOpen)
	fmt.Printf("cash:       %.0f\n", st.Cash)
	fmt.Printf("total:      %.0f\n", st.TotalValue)
	fmt.Printf("positions:  %d\n", st.PositionCount)
	fmt.Printf("orders:     %d total, %d ok, %d failed (%d buys / %d sells)\n",
		st.Orders.Total, st.Orders.Succeeded, st.Orders.Failed, st.Orders.Buys, st.Orders.Sells)
	return nil
}

func runPositions(ctx context.Context, c *autoswingtrade.Client) error {
	positions, err := c.GetPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no positions")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tQTY\tAVG\tLAST\tP&L\tP&L%\tSTATUS")
	for _, p := range positions {
		stale := ""
		if p.PriceStale {
			stale = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f%s\t%.0f\t%.2f\t%s\n",
			p.Symbol, p.Name, p.Qty, p.AvgPrice, p.LastPrice, stale,
			p.UnrealizedPL, p.UnrealizedPLPct, p.Status)
	}
	return w.Flush()
}

func runOrders(ctx context.Context, c *autoswingtrade.Client) error {
	orders, err := c.GetOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("no orders")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSYMBOL\tSIDE\tQTY\tFILLED\tPRICE\tSTATUS")
	for _, o := range orders {
		status := o.Status
		if o.CancelReason != "" {
			status += " (" + o.CancelReason + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
			shortID(o.OrderID), o.Symbol, o.Side, o.Qty, o.FilledQty, o.LimitPrice, status)
	}
	return w.Flush()
}

func runTrades(ctx context.Context, c *autoswingtrade.Client, args []string) error {
	fs := flag.NewFlagSet("trades", flag.ExitOnError)
	symbol := fs.String("symbol", "", "filter by symbol")
	days := fs.Int("days", 7, "lookback in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	trades, err := c.GetTrades(ctx, *symbol, *days)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("no trades")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSIDE\tSYMBOL\tQTY\tPRICE\tREALIZED\tREASON")
	for _, tr := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.0f\t%s\n",
			tr.Timestamp, tr.Side, tr.Symbol, tr.Qty, tr.Price, tr.RealizedPL, tr.Reason)
	}
	return w.Flush()
}

func runStats(ctx context.Context, c *autoswingtrade.Client, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	days := fs.Int("days", 30, "lookback in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := c.GetStats(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("trades:        %d (%d buys / %d sells)\n", s.TotalTrades, s.Buys, s.Sells)
	fmt.Printf("realized p&l:  %.0f\n", s.RealizedPL)
	fmt.Printf("win rate:      %.1f%% (%d wins / %d losses)\n", s.WinRate*100, s.Wins, s.Losses)
	fmt.Printf("profit factor: %.2f\n", s.ProfitFactor)
	fmt.Printf("avg win/loss:  %.0f / %.0f\n", s.AvgWin, s.AvgLoss)
	return nil
}

func runIntent(ctx context.Context, c *autoswingtrade.Client, side string, args []string) error {
	fs := flag.NewFlagSet(side, flag.ExitOnError)
	symbol := fs.String("symbol", "", "instrument symbol (required)")
	qty := fs.Int64("qty", 0, "quantity (required)")
	price := fs.Float64("price", 0, "limit price (required)")
	stop := fs.Float64("stop", 0, "stop-loss price")
	target := fs.Float64("target", 0, "take-profit price")
	reason := fs.String("reason", "manual", "entry/exit reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *symbol == "" || *qty <= 0 || *price <= 0 {
		return fmt.Errorf("%s requires -symbol, -qty, and -price", side)
	}

	res, err := c.SubmitIntent(ctx, autoswingtrade.Intent{
		Symbol:     *symbol,
		Side:       side,
		Qty:        *qty,
		Price:      *price,
		StopLoss:   *stop,
		TakeProfit: *target,
		Reason:     *reason,
	})
	if err != nil {
		return err
	}
	if !res.Accepted {
		return fmt.Errorf("rejected (%s): %s", res.Reason, res.Message)
	}
	fmt.Printf("accepted: order %s, qty %d\n", res.OrderID, res.Qty)
	return nil
}

func runPause(ctx context.Context, c *autoswingtrade.Client, args []string) error {
	fs := flag.NewFlagSet("pause", flag.ExitOnError)
	reason := fs.String("reason", "operator request", "pause reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := c.Pause(ctx, *reason)
	if err != nil {
		return err
	}
	fmt.Printf("paused: %v (%s)\n", st.Paused, st.PauseReason)
	return nil
}

func runResume(ctx context.Context, c *autoswingtrade.Client) error {
	st, err := c.Resume(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("paused: %v\n", st.Paused)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
