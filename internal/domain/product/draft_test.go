package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNewDraft_Template(t *testing.T) {
	draft := NewDraft(nil)

	assert.Empty(t, draft.ID)
	assert.Empty(t, draft.OriginPrice)
	assert.False(t, draft.Enabled)
	assert.NotNil(t, draft.Images)
	assert.Empty(t, draft.Images)
}

func TestNewDraft_CopiesSource(t *testing.T) {
	src := Product{
		ID:          "7",
		Title:       "Rose",
		Category:    "flower",
		OriginPrice: d("120"),
		Price:       d("99.5"),
		Unit:        "stem",
		Enabled:     true,
		ImageURL:    "main.jpg",
		ImagesURL:   []string{"a.jpg", "", "b.jpg"},
	}

	draft := NewDraft(&src)

	assert.Equal(t, "7", draft.ID)
	assert.Equal(t, "Rose", draft.Title)
	assert.Equal(t, "120", draft.OriginPrice)
	assert.Equal(t, "99.5", draft.Price)
	assert.True(t, draft.Enabled)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, draft.Images)

	// The draft must not alias the source images.
	require.NoError(t, draft.SetImage(0, "changed.jpg"))
	assert.Equal(t, "a.jpg", src.ImagesURL[0])
}

func TestApply(t *testing.T) {
	draft := NewDraft(nil)

	for _, u := range []FieldUpdate{
		{Field: FieldTitle, Value: "Tulip"},
		{Field: FieldCategory, Value: "flower"},
		{Field: FieldOriginPrice, Value: "abc"},
		{Field: FieldPrice, Value: "80"},
		{Field: FieldUnit, Value: "pot"},
		{Field: FieldDescription, Value: "yellow"},
		{Field: FieldContent, Value: "fresh"},
		{Field: FieldImageURL, Value: "t.jpg"},
		{Field: FieldEnabled, Value: "ignored", Checked: true},
	} {
		require.NoError(t, draft.Apply(u), "field %s", u.Field)
	}

	assert.Equal(t, Draft{
		Title:       "Tulip",
		Category:    "flower",
		OriginPrice: "abc",
		Price:       "80",
		Unit:        "pot",
		Description: "yellow",
		Content:     "fresh",
		Enabled:     true,
		ImageURL:    "t.jpg",
		Images:      []string{},
	}, draft)
}

func TestApply_UnknownField(t *testing.T) {
	draft := NewDraft(nil)

	err := draft.Apply(FieldUpdate{Field: "id", Value: "99"})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Empty(t, draft.ID)

	_, err = ParseField("imagesUrl")
	require.ErrorIs(t, err, ErrUnknownField)

	f, err := ParseField("origin_price")
	require.NoError(t, err)
	assert.Equal(t, FieldOriginPrice, f)
}

func TestPayload(t *testing.T) {
	draft := Draft{
		Title:       "Rose",
		OriginPrice: "100",
		Price:       "80",
		Enabled:     true,
		Images:      []string{"x", "", ""},
	}

	p, err := draft.Payload()
	require.NoError(t, err)

	assert.True(t, p.OriginPrice.Equal(d("100")))
	assert.True(t, p.Price.Equal(d("80")))
	assert.True(t, p.Enabled)
	assert.Equal(t, []string{"x"}, p.ImagesURL)
}

func TestPayload_Prices(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "blank is zero", raw: "", want: "0"},
		{name: "spaces trimmed", raw: " 12.50 ", want: "12.5"},
		{name: "integer", raw: "300", want: "300"},
		{name: "not a number", raw: "ten", wantErr: true},
		{name: "negative", raw: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Draft{Price: tt.raw}.Payload()
			if tt.wantErr {
				var fe *FieldError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, FieldPrice, fe.Field)
				assert.Equal(t, tt.raw, fe.Value)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.Price.Equal(d(tt.want)), "got %s", p.Price)
		})
	}
}
