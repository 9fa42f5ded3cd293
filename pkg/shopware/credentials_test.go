package shopware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentials_WithToken(t *testing.T) {
	c := NewCredentials("https://shop.test/", "key", "secret")

	tok, ok := c.Token()
	assert.False(t, ok)
	assert.Empty(t, tok)

	withToken := c.WithToken("token-123")
	tok, ok = withToken.Token()
	assert.True(t, ok)
	assert.Equal(t, "token-123", tok)

	assert.Equal(t, "https://shop.test", withToken.ShopURL())
	assert.Equal(t, "key", withToken.APIKey())
	assert.Equal(t, "secret", withToken.SecretKey())

	// the original is untouched
	_, ok = c.Token()
	assert.False(t, ok)
}
