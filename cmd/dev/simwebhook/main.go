package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"appsystem/pkg/shopware"
)

// simwebhook posts a payload signed with a shop secret, the way a shop
// delivers webhooks, lifecycle events and action-button callbacks.
func main() {
	var (
		url     = flag.String("url", "", "endpoint url (defaults to http://localhost<HTTP_ADDR>/webhook/product.written)")
		secret  = flag.String("secret", "", "shop secret returned by the registration handshake")
		payload = flag.String("payload", "", "path to json payload file")
	)
	flag.Parse()

	if *url == "" {
		httpAddr := os.Getenv("HTTP_ADDR")
		if httpAddr == "" {
			httpAddr = ":8081"
		}
		if strings.HasPrefix(httpAddr, ":") {
			*url = "http://localhost" + httpAddr + "/webhook/product.written"
		} else {
			*url = "http://localhost:8081/webhook/product.written"
		}
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -secret")
		os.Exit(2)
	}
	if *payload == "" {
		fmt.Fprintln(os.Stderr, "missing -payload")
		os.Exit(2)
	}

	b, err := os.ReadFile(*payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read payload: %v\n", err)
		os.Exit(2)
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(b))
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(2)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shopware.ShopSignatureHeader, shopware.SignPostBody(b, *secret))

	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "post: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n%s\n", resp.StatusCode, string(body))
}
