package webhook

import "strings"

// NormalizeEvent converts Shopware event and action names into a stable
// internal form.
// Examples:
// - "product.written" -> "product_written"
// - "checkout.order.placed" -> "checkout_order_placed"
// - "Order/Detail" -> "order_detail"
func NormalizeEvent(name string) string {
	t := strings.TrimSpace(strings.ToLower(name))
	t = strings.ReplaceAll(t, "/", "_")
	t = strings.ReplaceAll(t, ".", "_")
	t = strings.ReplaceAll(t, "-", "_")
	for strings.Contains(t, "__") {
		t = strings.ReplaceAll(t, "__", "_")
	}
	return strings.Trim(t, "_")
}
