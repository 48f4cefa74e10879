package cache

import (
	"time"

	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
)

const (
	defaultProductListTTL = 30 * time.Second
	productListKey        = "products"
)

// CatalogCache holds the public product listing. Gate and checkout lookups
// never go through it; they always read the database.
type CatalogCache interface {
	GetProducts() ([]catalogdomain.ProductView, bool)
	SetProducts(views []catalogdomain.ProductView)
	Invalidate()
}

type catalogCache struct {
	products Cache[string, []catalogdomain.ProductView]
	ttl      time.Duration
}

func NewCatalogCache(clk clock.Clock) CatalogCache {
	return &catalogCache{
		products: NewTTLCache[string, []catalogdomain.ProductView](clk),
		ttl:      defaultProductListTTL,
	}
}

func (c *catalogCache) GetProducts() ([]catalogdomain.ProductView, bool) {
	return c.products.Get(productListKey)
}

func (c *catalogCache) SetProducts(views []catalogdomain.ProductView) {
	if views == nil {
		return
	}
	c.products.Set(productListKey, views, c.ttl)
}

func (c *catalogCache) Invalidate() {
	c.products.Delete(productListKey)
}
