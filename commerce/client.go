// Package commerce talks to the external order-management backend and keeps
// the local orders collection reconciled with it.
package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsboard/store"
)

// Client is a read-only consumer of the upstream commerce REST API. Requests
// carry the fixed credential pair as basic auth and are bounded by a timeout
// so a hung upstream can never stall a reconciliation cycle forever.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, key, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("upstream decode: %w", err)
	}
	return nil
}

// Order is the upstream's order shape, limited to the fields we map.
type Order struct {
	ID                 int        `json:"id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	Total              string     `json:"total"`
	Currency           string     `json:"currency"`
	Billing            Billing    `json:"billing"`
	DateCreated        string     `json:"date_created"`
	LineItems          []LineItem `json:"line_items"`
	PaymentMethodTitle string     `json:"payment_method_title"`
	CustomerNote       string     `json:"customer_note"`
}

type Billing struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
}

type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

type Product struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	RegularPrice  string `json:"regular_price"`
	StockQuantity *int   `json:"stock_quantity"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Categories    []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// FetchOrders pulls the most recent perPage orders, newest first.
func (c *Client) FetchOrders(ctx context.Context, perPage int) ([]Order, error) {
	q := url.Values{}
	q.Set("per_page", fmt.Sprint(perPage))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	var orders []Order
	if err := c.get(ctx, "/orders", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchProducts pulls up to perPage products.
func (c *Client) FetchProducts(ctx context.Context, perPage int) ([]Product, error) {
	q := url.Values{}
	q.Set("per_page", fmt.Sprint(perPage))
	var products []Product
	if err := c.get(ctx, "/products", q, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// MapOrder renames the upstream order into the internal record shape. Absent
// line items become an empty list and an absent note an empty string, so
// downstream consumers never see null sub-fields.
func MapOrder(o Order) store.Record {
	items := make([]store.Record, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, store.Record{
			"name":  li.Name,
			"qty":   li.Quantity,
			"total": li.Total,
		})
	}
	return store.Record{
		"id":             o.ID,
		"number":         o.Number,
		"status":         o.Status,
		"total":          o.Total,
		"currency":       o.Currency,
		"customer":       strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
		"email":          o.Billing.Email,
		"phone":          o.Billing.Phone,
		"city":           o.Billing.City,
		"date":           o.DateCreated,
		"items":          items,
		"payment_method": o.PaymentMethodTitle,
		"note":           o.CustomerNote,
	}
}

// MapProduct renames the upstream product into the shape the dashboard shows.
func MapProduct(p Product) store.Record {
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, c.Name)
	}
	var image any
	if len(p.Images) > 0 {
		image = p.Images[0].Src
	}
	return store.Record{
		"id":            p.ID,
		"name":          p.Name,
		"price":         p.Price,
		"regular_price": p.RegularPrice,
		"stock":         p.StockQuantity,
		"status":        p.Status,
		"type":          p.Type,
		"categories":    categories,
		"image":         image,
	}
}
