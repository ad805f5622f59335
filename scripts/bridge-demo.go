//go:build ignore

// bridge-demo.go - Self-bridge demo against a loopback-mode teller
//
// Drives a full deposit-and-bridge round trip on a single teller running
// with transport.mode: loopback and auth.allow_unauthenticated_caller:
// true. The teller burns the freshly minted shares, the loopback
// transport redelivers the message to the same instance, and the
// receiver credits the recipient, so the send, its settlement and both
// events are queryable afterwards.
//
// Flow:
// 1. Register the teller's own chain entry (selector = local selector,
//    peer = local teller address), tolerating "already registered"
// 2. POST /deposit-and-bridge as the demo caller
// 3. Fetch the send record and verify it dispatched
// 4. Fetch the settlement recorded under the same message id
// 5. List the trailing events
//
// Usage:
//   go run scripts/bridge-demo.go -selector 1337 \
//     -teller 0x00000000000000000000000000000000000000aa \
//     -caller 0x00000000000000000000000000000000000000c1 \
//     -recipient 0x00000000000000000000000000000000000000d1 -amount 1000

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[0;36m"
	colorReset  = "\033[0m"
)

var client = &http.Client{Timeout: 10 * time.Second}

func main() {
	url := flag.String("url", "http://localhost:8080", "Teller base URL")
	apiKey := flag.String("api-key", os.Getenv("TELLER_ADMIN_KEY"), "API key with chains:manage")
	selector := flag.Uint64("selector", 1337, "Local chain selector (teller.local_chain_selector)")
	teller := flag.String("teller", "", "Local teller address (teller.local_teller_address)")
	caller := flag.String("caller", "0x00000000000000000000000000000000000000c1", "Demo caller address")
	recipient := flag.String("recipient", "0x00000000000000000000000000000000000000d1", "Share recipient address")
	amount := flag.String("amount", "1000", "Asset amount to deposit and bridge")
	messageGas := flag.Uint64("message-gas", 200000, "Gas forwarded with the message")
	flag.Parse()

	if *teller == "" {
		fmt.Fprintln(os.Stderr, "-teller is required (must match teller.local_teller_address)")
		flag.Usage()
		os.Exit(2)
	}

	step(1, "Registering self-chain entry")
	ensureChain(*url, *apiKey, *selector, *teller)

	step(2, fmt.Sprintf("Bridging %s shares from %s to %s", *amount, *caller, *recipient))
	messageID := depositAndBridge(*url, *caller, *recipient, *amount, *selector, *messageGas)
	fmt.Printf("   message id: %s%s%s\n", colorCyan, messageID, colorReset)

	step(3, "Checking the send record")
	send := getJSON(*url + "/api/v1/sends/" + messageID)
	fmt.Printf("   status: %s%v%s, receipt: %v\n", colorGreen, send["status"], colorReset, send["transport_receipt"])

	step(4, "Checking the settlement")
	settlement := getJSON(*url + "/api/v1/settlements/" + messageID)
	fmt.Printf("   credited %v shares to %v\n", settlement["share_amount"], settlement["recipient"])

	step(5, "Trailing events")
	listEvents(*url)

	fmt.Printf("\n%sDemo complete.%s\n", colorGreen, colorReset)
}

func step(n int, msg string) {
	fmt.Printf("\n%s[%d]%s %s\n", colorYellow, n, colorReset, msg)
}

// ensureChain registers the loopback self-chain, treating 409 as success
// so the demo can be re-run.
func ensureChain(url, apiKey string, selector uint64, teller string) {
	body, _ := json.Marshal(map[string]any{
		"selector":    strconv.FormatUint(selector, 10),
		"allow_from":  true,
		"allow_to":    true,
		"peer_teller": teller,
		"gas_limit":   uint64(400000),
		"min_gas":     uint64(50000),
	})

	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/chains", bytes.NewReader(body))
	if err != nil {
		fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		fmt.Println("   chain registered")
	case http.StatusConflict:
		fmt.Println("   chain already registered")
	default:
		fatalf("register chain: %s: %s", resp.Status, respBody)
	}
}

func depositAndBridge(url, caller, recipient, amount string, selector uint64, messageGas uint64) string {
	body, _ := json.Marshal(map[string]any{
		"caller": caller,
		"deposit": map[string]any{
			"asset":  "0x0000000000000000000000000000000000000000",
			"amount": amount,
		},
		"bridge": map[string]any{
			"chain_selector":       strconv.FormatUint(selector, 10),
			"destination_receiver": recipient,
			"share_amount":         amount,
			"message_gas":          messageGas,
		},
	})

	resp, err := client.Post(url+"/api/v1/deposit-and-bridge", "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fatalf("deposit-and-bridge: %s: %s", resp.Status, respBody)
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		fatalf("decode response: %v", err)
	}
	return out.MessageID
}

func getJSON(url string) map[string]any {
	resp, err := client.Get(url)
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fatalf("GET %s: %s: %s", url, resp.Status, respBody)
	}

	var out map[string]any
	if err := json.Unmarshal(respBody, &out); err != nil {
		fatalf("decode response: %v", err)
	}
	return out
}

func listEvents(url string) {
	resp, err := client.Get(url + "/api/v1/events?limit=10")
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fatalf("list events: %s: %s", resp.Status, respBody)
	}

	var events []struct {
		Type          string `json:"type"`
		ChainSelector string `json:"chain_selector"`
		MessageID     string `json:"message_id"`
	}
	if err := json.Unmarshal(respBody, &events); err != nil {
		fatalf("decode response: %v", err)
	}
	for _, evt := range events {
		fmt.Printf("   %-24s chain=%s message=%s\n", evt.Type, evt.ChainSelector, evt.MessageID)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
