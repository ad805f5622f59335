//go:build ignore

// add-chain.go - Register a chain in the teller registry
//
// Registers a remote chain under its selector with the peer teller
// address and gas window, using an API key that carries chains:manage.
//
// Usage:
//   go run scripts/add-chain.go -selector 5009297550715157269 \
//     -peer 0x1111111111111111111111111111111111111111 \
//     -allow-from -allow-to -gas-limit 400000 -min-gas 50000
//
// Flags:
//   -url      Teller base URL (default http://localhost:8080)
//   -api-key  API key; defaults to $TELLER_ADMIN_KEY

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

func main() {
	url := flag.String("url", "http://localhost:8080", "Teller base URL")
	apiKey := flag.String("api-key", os.Getenv("TELLER_ADMIN_KEY"), "API key with chains:manage")
	selector := flag.Uint64("selector", 0, "Chain selector to register")
	peer := flag.String("peer", "", "Peer teller address on the chain")
	allowFrom := flag.Bool("allow-from", false, "Allow inbound messages from the chain")
	allowTo := flag.Bool("allow-to", false, "Allow outbound messages to the chain")
	gasLimit := flag.Uint64("gas-limit", 400000, "Outbound gas ceiling")
	minGas := flag.Uint64("min-gas", 50000, "Outbound gas floor")
	flag.Parse()

	if *selector == 0 || *peer == "" {
		fmt.Fprintln(os.Stderr, "both -selector and -peer are required")
		flag.Usage()
		os.Exit(2)
	}

	body, err := json.Marshal(map[string]any{
		"selector":    strconv.FormatUint(*selector, 10),
		"allow_from":  *allowFrom,
		"allow_to":    *allowTo,
		"peer_teller": *peer,
		"gas_limit":   *gasLimit,
		"min_gas":     *minGas,
	})
	if err != nil {
		fatalf("encode request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, *url+"/api/v1/chains", bytes.NewReader(body))
	if err != nil {
		fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatalf("call teller: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		fatalf("teller returned %s: %s", resp.Status, respBody)
	}

	fmt.Printf("Chain registered: %s\n", respBody)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
