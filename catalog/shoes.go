// Package catalog fetches the protected shoe catalog through the
// authenticated client and normalises the backend's item shapes.
package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/apiclient"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

const (
	ShoesPath      = "/shoes"
	DefaultTimeout = 8 * time.Second
)

// Shoe is the normalised catalog item.
type Shoe struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Tag      string  `json:"tag,omitempty"`
	Category string  `json:"category,omitempty"`
}

// Doer is satisfied by *apiclient.Client.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// FetchShoes returns the catalog. A 404 means an empty catalog; items that
// carry no id or name are dropped.
func FetchShoes(ctx context.Context, client Doer, timeout time.Duration) ([]Shoe, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	resp, err := client.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: ShoesPath, Timeout: timeout})
	if apiclient.StatusCode(err) == http.StatusNotFound && !errors.Is(err, sessionerrors.ErrAuthRejected) {
		return []Shoe{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[catalog.FetchShoes] request")
	}

	var items []map[string]any
	if err := utils.DecodeJSON(resp.Body, &items); err != nil {
		return nil, errors.Wrap(err, "[catalog.FetchShoes] decode")
	}
	shoes := make([]Shoe, 0, len(items))
	for _, item := range items {
		if shoe, ok := Normalize(item); ok {
			shoes = append(shoes, shoe)
		}
	}
	return shoes, nil
}

// Normalize maps the field spellings different backends use onto Shoe.
func Normalize(item map[string]any) (Shoe, bool) {
	id, _ := utils.ToInt64(first(item, "id", "shoe_id", "product_id"))
	name := utils.ToString(first(item, "name", "Productname", "productname", "title", "Name"))
	if id == 0 || name == "" {
		return Shoe{}, false
	}

	price, ok := toFloat(first(item, "price", "Price", "amount", "cost"))
	if !ok {
		price = 0
	}
	return Shoe{
		ID:       id,
		Name:     name,
		Price:    price,
		Image:    utils.ToString(first(item, "image", "imageUrl", "image_url", "img", "picture", "photo")),
		Tag:      utils.ToString(first(item, "tag", "category_tag", "label")),
		Category: utils.ToString(first(item, "category", "type")),
	}, true
}

func first(item map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
