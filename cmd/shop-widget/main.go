// Command shop-widget is a headless driver for the widget runtime. It
// mounts a widget against a backend, runs the initialization protocol,
// and turns stdin lines into conversation messages. Useful for smoke
// testing against the sandbox backend.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	shopwidget "github.com/hazlamahedich/shop-widget-go"
	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
)

func main() {
	merchantID := flag.String("merchant", "demo-merchant", "merchant identifier")
	hostName := flag.String("host", "demo.myshopify.com", "embedding host domain")
	apiBase := flag.String("api", "", "backend API base URL override")
	realtime := flag.String("realtime", "", "realtime endpoint override")
	fallback := flag.Bool("fallback", false, "use the one-directional fallback transport")
	flag.Parse()

	w, err := shopwidget.Mount(shopwidget.Options{
		MerchantID:           *merchantID,
		HostName:             *hostName,
		APIBaseURL:           *apiBase,
		RealtimeURL:          *realtime,
		UseFallbackTransport: *fallback,
	})
	if err != nil {
		log.Fatalf("Mount failed: %v", err)
	}
	defer w.Unmount()

	w.OnChange(func(state widget.State) {
		if len(state.Messages) == 0 {
			return
		}
		last := state.Messages[len(state.Messages)-1]
		if last.Sender != widget.SenderUser {
			fmt.Printf("[%s] %s\n", last.Sender, last.Content)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Init(ctx); err != nil {
		log.Fatalf("Init failed: %v", err)
	}
	w.Open()
	fmt.Println("Connected. Type a message; /cart <variant>, /checkout, /end, /quit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-quit:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := handleLine(ctx, w, strings.TrimSpace(line)); done {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, w *shopwidget.Widget, line string) bool {
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/end":
		if err := w.End(ctx); err != nil {
			fmt.Printf("end: %v\n", err)
		}
		return true
	case line == "/checkout":
		url, err := w.Checkout(ctx)
		if err != nil {
			fmt.Printf("checkout: %v\n", err)
			return false
		}
		fmt.Printf("checkout URL: %s\n", url)
	case strings.HasPrefix(line, "/cart "):
		variant := strings.TrimSpace(strings.TrimPrefix(line, "/cart "))
		if err := w.AddToCart(ctx, variant, 1); err != nil {
			fmt.Printf("add to cart: %v\n", err)
		}
	case line == "/retry":
		if err := w.RetryLastAction(ctx); err != nil {
			fmt.Printf("retry: %v\n", err)
		}
	default:
		if err := w.SendMessage(ctx, line); err != nil {
			fmt.Printf("send: %v\n", err)
		}
	}
	return false
}
