//go:build ignore

// list-events.go - Print the teller event feed
//
// Usage:
//   go run scripts/list-events.go [-type message_sent] [-selector 1337] [-limit 20]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

func main() {
	base := flag.String("url", "http://localhost:8080", "Teller base URL")
	eventType := flag.String("type", "", "Filter by event type (e.g. message_sent, message_received, chain_added)")
	selector := flag.Uint64("selector", 0, "Filter by chain selector")
	limit := flag.Int("limit", 20, "Maximum number of events")
	flag.Parse()

	q := url.Values{}
	if *eventType != "" {
		q.Set("type", *eventType)
	}
	if *selector != 0 {
		q.Set("selector", strconv.FormatUint(*selector, 10))
	}
	q.Set("limit", strconv.Itoa(*limit))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*base + "/api/v1/events?" + q.Encode())
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fatalf("teller returned %s: %s", resp.Status, respBody)
	}

	var events []struct {
		ID            int64     `json:"id"`
		Type          string    `json:"type"`
		ChainSelector string    `json:"chain_selector"`
		MessageID     *string   `json:"message_id"`
		ShareAmount   *string   `json:"share_amount"`
		Recipient     *string   `json:"recipient"`
		CreatedAt     time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(respBody, &events); err != nil {
		fatalf("decode response: %v", err)
	}

	if len(events) == 0 {
		fmt.Println("no events")
		return
	}

	for _, evt := range events {
		line := fmt.Sprintf("%s  #%-5d %-24s chain=%s",
			evt.CreatedAt.Format(time.RFC3339), evt.ID, evt.Type, evt.ChainSelector)
		if evt.MessageID != nil {
			line += " message=" + *evt.MessageID
		}
		if evt.ShareAmount != nil {
			line += " shares=" + *evt.ShareAmount
		}
		if evt.Recipient != nil {
			line += " recipient=" + *evt.Recipient
		}
		fmt.Println(line)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
