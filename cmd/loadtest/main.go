// Package main provides a stress testing tool for the notification feed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"confessional/internal/config"
	"confessional/internal/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	ActionsSent          int64
	ActionsFailed        int64
	FeedReceived         int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	clients := flag.Int("clients", 50, "Number of concurrent feed clients")
	firstUser := flag.Int64("first-user", 9_100_000_000, "User id of the first simulated client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between actions per client")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	log.Printf("🚀 Starting Feed Stress Test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		userID := *firstUser + int64(i)
		token, err := middleware.SignActorToken(cfg, userID, uuid.NewString(), *duration+time.Minute)
		if err != nil {
			log.Fatalf("❌ Sign token: %v", err)
		}
		wg.Add(1)
		go runClient(*host, token, *interval, stopChan, &wg)
		time.Sleep(20 * time.Millisecond) // Stagger connections
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func runClient(host, token string, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/feed", RawQuery: "token=" + url.QueryEscape(token)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.FeedReceived, 1)
		}
	}()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := browse(httpClient, host, token); err != nil {
				atomic.AddInt64(&metrics.ActionsFailed, 1)
				continue
			}
			atomic.AddInt64(&metrics.ActionsSent, 1)
		}
	}
}

// browse runs a read-only action so the load does not pollute the board.
func browse(client *http.Client, host, token string) error {
	body, _ := json.Marshal(map[string]string{"kind": "latest"})
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/actions", host), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("action failed with status %d", resp.StatusCode)
	}
	return nil
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Actions Sent: %d", atomic.LoadInt64(&metrics.ActionsSent))
	log.Printf("Actions Failed: %d", atomic.LoadInt64(&metrics.ActionsFailed))
	log.Printf("Feed Messages Received: %d", atomic.LoadInt64(&metrics.FeedReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
