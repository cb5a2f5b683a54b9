package clients

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/csrf"
)

// PageClient reads server-rendered storefront pages.
type PageClient struct {
	c         *Client
	formToken *csrf.Remembered
}

// NewPageClient reads pages through c. When formToken is not nil, every fetched
// cart page's hidden csrfmiddlewaretoken is stored in it.
func NewPageClient(c *Client, formToken *csrf.Remembered) *PageClient {
	return &PageClient{c: c, formToken: formToken}
}

type CartPage struct {
	Lines []cart.Line
	Total decimal.Decimal
	// FormToken is the csrfmiddlewaretoken of the first form on the page, if any.
	FormToken string
}

// FetchCart loads /cart/ and reads the rows the shopper sees. Fetching the page
// also lets the server set the csrftoken cookie in the client's jar.
func (pc *PageClient) FetchCart(ctx context.Context) (CartPage, error) {
	resp, err := pc.c.Do(ctx, http.MethodGet, "/cart/", "", nil, nil)
	if err != nil {
		return CartPage{}, &RequestError{Op: "fetch cart", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CartPage{}, &RequestError{Op: "fetch cart", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	page, err := ParseCartPage(resp.Body)
	if err != nil {
		return CartPage{}, &RequestError{Op: "fetch cart", StatusCode: resp.StatusCode, Err: err}
	}
	if pc.formToken != nil {
		pc.formToken.Set(page.FormToken)
	}
	return page, nil
}

// ParseCartPage extracts cart rows: each .cart-item holds a quantity input
// (.quantity or .update-quantity, carrying data-item-id) and an .item-total cell.
func ParseCartPage(r io.Reader) (CartPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return CartPage{}, errors.Wrap(err, "parse cart page")
	}

	page := CartPage{Total: decimal.Zero}
	for _, row := range findAll(doc, withClass("cart-item")) {
		l, ok := parseRow(row)
		if ok {
			page.Lines = append(page.Lines, l)
		}
	}

	if n := findFirst(doc, withClass("cart-total")); n != nil {
		if d, ok := parseAmount(text(n)); ok {
			page.Total = d
		}
	}

	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "input" && attr(n, "name") == csrf.FormFieldName
	}); n != nil {
		page.FormToken = attr(n, "value")
	}
	return page, nil
}

func parseRow(row *html.Node) (cart.Line, bool) {
	input := findFirst(row, func(n *html.Node) bool {
		return hasClass(n, "update-quantity") || hasClass(n, "quantity")
	})

	rawID := attr(row, "data-item-id")
	if rawID == "" {
		rawID = attr(input, "data-item-id")
	}
	itemID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return cart.Line{}, false
	}

	l := cart.Line{ItemID: itemID, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
	if pid, err := strconv.ParseInt(attr(row, "data-product-id"), 10, 64); err == nil {
		l.ProductID = pid
	}
	if q, err := strconv.Atoi(strings.TrimSpace(attr(input, "value"))); err == nil {
		l.Quantity = q
	}
	if d, ok := parseAmount(text(findFirst(row, withClass("item-total")))); ok {
		l.LineTotal = d
	}
	if d, ok := parseAmount(text(findFirst(row, withClass("item-price")))); ok {
		l.UnitPrice = d
	} else if l.Quantity > 0 {
		l.UnitPrice = l.LineTotal.Div(decimal.NewFromInt(int64(l.Quantity)))
	}
	return l, true
}
