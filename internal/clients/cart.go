package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
)

type CartClient struct{ c *Client }

func NewCartClient(c *Client) *CartClient { return &CartClient{c: c} }

type result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (r result) ok() bool        { return r.Success }
func (r result) failure() string { return r.Error }

type AddItemResult struct {
	result
	// CartTotal is the number of items in the cart, not an amount.
	CartTotal decimal.Decimal `json:"cart_total"`
	Message   string          `json:"message"`
}

func (r AddItemResult) ItemCount() int { return int(r.CartTotal.IntPart()) }

type UpdateQuantityResult struct {
	result
	Deleted    bool            `json:"deleted"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CartTotal  decimal.Decimal `json:"cart_total"`
}

type RemoveItemResult struct {
	result
	CartTotal decimal.Decimal `json:"cart_total"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (cc *CartClient) AddItem(ctx context.Context, productID int64) (AddItemResult, error) {
	var out AddItemResult
	err := cc.c.doJSON(ctx, "add item", http.MethodPost, "/cart/add/"+id(productID)+"/", nil, nil, &out)
	return out, err
}

// UpdateQuantity sends quantity unvalidated; zero or less asks the server to delete the line.
func (cc *CartClient) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (UpdateQuantityResult, error) {
	body, err := json.Marshal(updateQuantityRequest{Quantity: quantity})
	if err != nil {
		return UpdateQuantityResult{}, &RequestError{Op: "update quantity", Err: err}
	}
	headers := http.Header{"Content-Type": []string{"application/json"}}

	var out UpdateQuantityResult
	err = cc.c.doJSON(ctx, "update quantity", http.MethodPost, "/cart/update/"+id(itemID)+"/", bytes.NewReader(body), headers, &out)
	return out, err
}

func (cc *CartClient) RemoveItem(ctx context.Context, itemID int64) (RemoveItemResult, error) {
	var out RemoveItemResult
	err := cc.c.doJSON(ctx, "remove item", http.MethodPost, "/cart/remove/"+id(itemID)+"/", nil, nil, &out)
	return out, err
}

func id(v int64) string { return strconv.FormatInt(v, 10) }
