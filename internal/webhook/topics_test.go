package webhook

import "testing"

func TestNormalizeEvent(t *testing.T) {
	tests := map[string]string{
		"product.written":       "product_written",
		"checkout.order.placed": "checkout_order_placed",
		" Order/Detail ":        "order_detail",
		"app..installed":        "app_installed",
		"-order-":               "order",
		"":                      "",
	}
	for in, want := range tests {
		if got := NormalizeEvent(in); got != want {
			t.Errorf("NormalizeEvent(%q) = %q, want %q", in, got, want)
		}
	}
}
