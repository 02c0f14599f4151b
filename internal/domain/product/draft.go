package product

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Field names a scalar draft field. Values match the wire/form names.
type Field string

const (
	FieldTitle       Field = "title"
	FieldCategory    Field = "category"
	FieldOriginPrice Field = "origin_price"
	FieldPrice       Field = "price"
	FieldUnit        Field = "unit"
	FieldDescription Field = "description"
	FieldContent     Field = "content"
	FieldEnabled     Field = "is_enabled"
	FieldImageURL    Field = "imageUrl"
)

// Fields lists every scalar field accepted by Draft.Apply, in form order.
var Fields = []Field{
	FieldImageURL,
	FieldTitle,
	FieldCategory,
	FieldUnit,
	FieldOriginPrice,
	FieldPrice,
	FieldDescription,
	FieldContent,
	FieldEnabled,
}

// ErrUnknownField is returned when an update names a field outside Fields.
var ErrUnknownField = errors.New("unknown field")

// ParseField validates name against the known field set.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if !slices.Contains(Fields, f) {
		return "", errors.Wrapf(ErrUnknownField, "%q", name)
	}
	return f, nil
}

// FieldUpdate is a single tagged assignment to a draft field. Checked is
// used for FieldEnabled, Value for every other field.
type FieldUpdate struct {
	Field   Field
	Value   string
	Checked bool
}

// FieldError reports a draft value that could not be coerced for persistence.
type FieldError struct {
	Field Field
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Draft is the editable copy of a product held by an edit session. Prices
// are kept exactly as typed; coercion happens in Payload.
type Draft struct {
	ID          string
	Title       string
	Category    string
	OriginPrice string
	Price       string
	Unit        string
	Description string
	Content     string
	Enabled     bool
	ImageURL    string
	Images      []string
}

// NewDraft returns the empty template, or a copy of src merged onto it.
func NewDraft(src *Product) Draft {
	if src == nil {
		return Draft{Images: []string{}}
	}
	d := Draft{
		ID:          src.ID,
		Title:       src.Title,
		Category:    src.Category,
		OriginPrice: src.OriginPrice.String(),
		Price:       src.Price.String(),
		Unit:        src.Unit,
		Description: src.Description,
		Content:     src.Content,
		Enabled:     src.Enabled,
		ImageURL:    src.ImageURL,
		Images:      make([]string, 0, MaxImages),
	}
	for _, u := range src.ImagesURL {
		if u == "" || len(d.Images) == MaxImages {
			continue
		}
		d.Images = append(d.Images, u)
	}
	return d
}

// Clone returns a deep copy of d.
func (d Draft) Clone() Draft {
	d.Images = slices.Clone(d.Images)
	if d.Images == nil {
		d.Images = []string{}
	}
	return d
}

// Apply assigns u to the draft. Values are not validated.
func (d *Draft) Apply(u FieldUpdate) error {
	switch u.Field {
	case FieldTitle:
		d.Title = u.Value
	case FieldCategory:
		d.Category = u.Value
	case FieldOriginPrice:
		d.OriginPrice = u.Value
	case FieldPrice:
		d.Price = u.Value
	case FieldUnit:
		d.Unit = u.Value
	case FieldDescription:
		d.Description = u.Value
	case FieldContent:
		d.Content = u.Value
	case FieldEnabled:
		d.Enabled = u.Checked
	case FieldImageURL:
		d.ImageURL = u.Value
	default:
		return errors.Wrapf(ErrUnknownField, "%q", u.Field)
	}
	return nil
}

// Payload coerces the draft into a record ready to persist: prices become
// numbers and empty secondary image slots are dropped.
func (d Draft) Payload() (Product, error) {
	originPrice, err := coercePrice(FieldOriginPrice, d.OriginPrice)
	if err != nil {
		return Product{}, err
	}
	price, err := coercePrice(FieldPrice, d.Price)
	if err != nil {
		return Product{}, err
	}

	images := make([]string, 0, len(d.Images))
	for _, u := range d.Images {
		if u != "" {
			images = append(images, u)
		}
	}

	return Product{
		ID:          d.ID,
		Title:       d.Title,
		Category:    d.Category,
		OriginPrice: originPrice,
		Price:       price,
		Unit:        d.Unit,
		Description: d.Description,
		Content:     d.Content,
		Enabled:     d.Enabled,
		ImageURL:    d.ImageURL,
		ImagesURL:   images,
	}, nil
}

// coercePrice treats a blank value as zero and rejects anything that is not
// a non-negative number.
func coercePrice(f Field, raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: f, Value: raw, Err: errors.New("not a number")}
	}
	if v.IsNegative() {
		return decimal.Zero, &FieldError{Field: f, Value: raw, Err: errors.New("must not be negative")}
	}
	return v, nil
}
