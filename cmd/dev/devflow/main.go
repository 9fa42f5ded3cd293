package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"appsystem/internal/registration"
	"appsystem/pkg/config"
	"appsystem/pkg/shopware"
)

// devflow plays a shop against a running app: it registers, confirms API
// keys, sends app.installed and clicks an action button. A local fake shop
// answers the token and entity requests the app makes back.
func main() {
	var (
		appURL   = flag.String("app-url", "", "app base url (defaults to http://localhost<HTTP_ADDR>)")
		shopAddr = flag.String("shop-addr", "127.0.0.1:0", "listen address of the fake shop")
		entity   = flag.String("action", "order", "action button to click after install")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.App.Name == "" || cfg.App.Secret == "" {
		fmt.Fprintln(os.Stderr, "missing APP_NAME or APP_SECRET (env/.env)")
		os.Exit(2)
	}
	if *appURL == "" {
		*appURL = defaultAppURL(cfg.HTTPAddr)
	}

	shopURL, apiCalls, err := startFakeShop(*shopAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake shop: %v\n", err)
		os.Exit(1)
	}

	shopID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	c := &http.Client{Timeout: 10 * time.Second}

	// Step 1: registration request signed with the app secret.
	q := shopware.Query{
		{Key: "shop-id", Value: shopID},
		{Key: "shop-url", Value: shopURL},
		{Key: "timestamp", Value: strconv.FormatInt(time.Now().Unix(), 10)},
	}
	raw := q.Encode()
	sig, err := shopware.SignRegistrationQuery(raw, cfg.App.Secret)
	if err != nil {
		fail("sign registration", err)
	}
	req, _ := http.NewRequest(http.MethodGet, *appURL+"/registration?"+raw, nil)
	req.Header.Set(shopware.AppSignatureHeader, sig)
	status, body := send(c, req)
	if status != http.StatusOK {
		failStatus("registration", status, body)
	}

	var res registration.Result
	if err := json.Unmarshal(body, &res); err != nil {
		fail("decode registration", err)
	}
	if res.Proof != registration.Proof(shopID, shopURL, cfg.App.Name, cfg.App.Secret) {
		fmt.Fprintln(os.Stderr, "registration proof mismatch: is APP_NAME the same as the app's?")
		os.Exit(1)
	}

	// Step 2: confirmation signed with the shop secret.
	confirm, _ := json.Marshal(map[string]string{
		"shopId":    shopID,
		"apiKey":    "SWIA" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:22],
		"secretKey": uuid.NewString(),
	})
	status, body = postSigned(c, res.ConfirmationURL, confirm, res.Secret)
	if status != http.StatusOK {
		failStatus("confirm", status, body)
	}

	// Step 3: lifecycle and an action button.
	installed := eventBody(shopURL, shopID, map[string]any{"event": "app.installed"})
	status, body = postSigned(c, *appURL+"/applifecycle/installed", installed, res.Secret)
	if status != http.StatusOK {
		failStatus("app.installed", status, body)
	}

	action := eventBody(shopURL, shopID, map[string]any{
		"ids":    []string{strings.ReplaceAll(uuid.NewString(), "-", "")},
		"entity": *entity,
		"action": "detail",
	})
	status, body = postSigned(c, *appURL+"/actionbutton/"+*entity, action, res.Secret)
	if status != http.StatusNoContent {
		failStatus("action button", status, body)
	}

	fmt.Printf("Handshake complete.\n")
	fmt.Printf("shop_id=%s shop_url=%s\n", shopID, shopURL)
	fmt.Printf("shop_secret=%s\n", res.Secret)
	fmt.Printf("fake shop served %d api requests\n", apiCalls.Load())
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("- Send a webhook:\n")
	fmt.Printf("  go run ./cmd/dev/simwebhook -secret %s -payload <file> -url %s/webhook/product.written\n", res.Secret, *appURL)
}

func startFakeShop(addr string) (string, *atomic.Int32, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	calls := new(atomic.Int32)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer","expires_in":600,"access_token":"` + uuid.NewString() + `"}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"devflow"}}`))
	})
	go func() { _ = http.Serve(ln, mux) }()
	return "http://" + ln.Addr().String(), calls, nil
}

func eventBody(shopURL, shopID string, data map[string]any) []byte {
	b, _ := json.Marshal(map[string]any{
		"data": data,
		"source": map[string]any{
			"url":        shopURL,
			"shopId":     shopID,
			"appVersion": "1.0.0",
		},
		"meta": map[string]any{
			"timestamp": time.Now().Unix(),
			"reference": uuid.NewString(),
		},
	})
	return b
}

func postSigned(c *http.Client, url string, body []byte, secret string) (int, []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fail("new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shopware.ShopSignatureHeader, shopware.SignPostBody(body, secret))
	return send(c, req)
}

func send(c *http.Client, req *http.Request) (int, []byte) {
	resp, err := c.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", req.Method, req.URL.Path, err)
		fmt.Fprintf(os.Stderr, "tip: is the API running, and is HTTP_ADDR set correctly?\n")
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func defaultAppURL(httpAddr string) string {
	// httpAddr is typically ":8081" or "0.0.0.0:8081".
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		addr = ":8081"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + addr
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

func failStatus(step string, status int, body []byte) {
	fmt.Fprintf(os.Stderr, "%s status=%d body=%s\n", step, status, string(body))
	os.Exit(1)
}
