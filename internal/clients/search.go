package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

type SearchClient struct{ c *Client }

func NewSearchClient(c *Client) *SearchClient { return &SearchClient{c: c} }

type SearchResult struct {
	Query      string
	ProductIDs []int64
}

// Search runs the storefront search page and collects the products it offers
// to add to the cart (.add-to-cart buttons carrying data-product-id).
func (sc *SearchClient) Search(ctx context.Context, query string) (SearchResult, error) {
	q := url.Values{"q": []string{query}}
	resp, err := sc.c.Do(ctx, http.MethodGet, "/search/", q.Encode(), nil, nil)
	if err != nil {
		return SearchResult{}, &RequestError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SearchResult{}, &RequestError{Op: "search", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return SearchResult{}, &RequestError{Op: "search", StatusCode: resp.StatusCode, Err: errors.Wrap(err, "parse results")}
	}

	res := SearchResult{Query: query}
	seen := map[int64]bool{}
	for _, n := range findAll(doc, withClass("add-to-cart")) {
		pid, err := strconv.ParseInt(attr(n, "data-product-id"), 10, 64)
		if err != nil || seen[pid] {
			continue
		}
		seen[pid] = true
		res.ProductIDs = append(res.ProductIDs, pid)
	}
	return res, nil
}
