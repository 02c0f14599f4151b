package catalog

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// EncodeProduct writes p in the catalog record shape. Prices are written as
// JSON numbers and the enabled flag as 0 or 1. The id is omitted for records
// that have not been created yet.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		if p.ID != "" {
			e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		}
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("origin_price", func(e *jx.Encoder) { e.Raw([]byte(p.OriginPrice.String())) })
		e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(p.Price.String())) })
		e.Field("unit", func(e *jx.Encoder) { e.Str(p.Unit) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("content", func(e *jx.Encoder) { e.Str(p.Content) })
		e.Field("is_enabled", func(e *jx.Encoder) {
			if p.Enabled {
				e.Int(1)
			} else {
				e.Int(0)
			}
		})
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		e.Field("imagesUrl", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, u := range p.ImagesURL {
					e.Str(u)
				}
			})
		})
	})
}

// DecodeProduct reads one catalog record. Unknown fields are skipped. Prices
// and the id may arrive as numbers or strings; the enabled flag as 0/1 or a
// boolean.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeLooseString(d)
		case "title":
			p.Title, err = decodeLooseString(d)
		case "category":
			p.Category, err = decodeLooseString(d)
		case "origin_price":
			p.OriginPrice, err = decodeDecimal(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "unit":
			p.Unit, err = decodeLooseString(d)
		case "description":
			p.Description, err = decodeLooseString(d)
		case "content":
			p.Content, err = decodeLooseString(d)
		case "is_enabled":
			p.Enabled, err = decodeFlag(d)
		case "imageUrl":
			p.ImageURL, err = decodeLooseString(d)
		case "imagesUrl":
			p.ImagesURL, err = decodeStrings(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// decodeProductList reads a list response. The products member may be an
// array, or an object keyed by id.
func decodeProductList(d *jx.Decoder) ([]product.Product, error) {
	products := []product.Product{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "products" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				p, err := DecodeProduct(d)
				if err != nil {
					return err
				}
				products = append(products, p)
				return nil
			})
		case jx.Object:
			return d.Obj(func(d *jx.Decoder, id string) error {
				p, err := DecodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %q", id)
				}
				if p.ID == "" {
					p.ID = id
				}
				products = append(products, p)
				return nil
			})
		case jx.Null:
			return d.Null()
		default:
			return errors.Errorf("products: unexpected %s", d.Next())
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func encodeSignIn(e *jx.Encoder, username, password string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("username", func(e *jx.Encoder) { e.Str(username) })
		e.Field("password", func(e *jx.Encoder) { e.Str(password) })
	})
}

// encodeData wraps a product in the {"data": ...} envelope used by writes.
func encodeData(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) { EncodeProduct(e, p) })
	})
}

type signInResponse struct {
	Token   string
	Expires time.Time
}

// decodeSignIn reads {token, expired}. The expiry is epoch milliseconds,
// either as a number or a numeric string; an RFC 3339 string is accepted too.
func decodeSignIn(d *jx.Decoder) (signInResponse, error) {
	var resp signInResponse
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			s, err := d.Str()
			resp.Token = s
			return errors.Wrap(err, "token")
		case "expired":
			t, err := decodeExpiry(d)
			resp.Expires = t
			return errors.Wrap(err, "expired")
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return signInResponse{}, errors.Wrap(err, "decode sign-in")
	}
	return resp, nil
}

func decodeExpiry(d *jx.Decoder) (time.Time, error) {
	switch d.Next() {
	case jx.Number:
		ms, err := d.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return time.Time{}, err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		return time.Parse(time.RFC3339, s)
	default:
		return time.Time{}, errors.Errorf("unexpected %s", d.Next())
	}
}

// decodeMessage extracts the message member of an error body, if any.
func decodeMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "message" || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		msg = s
		return err
	})
	return msg
}

func decodeLooseString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := decodeLooseString(d)
	if err != nil {
		return decimal.Zero, err
	}
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func decodeFlag(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.Number:
		n, err := d.Int()
		return n != 0, err
	case jx.Null:
		return false, d.Null()
	default:
		return false, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := decodeLooseString(d)
		out = append(out, s)
		return err
	})
	return out, err
}
