package console

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/catalog"
	"github.com/xenking/catalog-admin/internal/domain/product"
	"github.com/xenking/catalog-admin/internal/editor"
)

const maxRequestBody = 64 << 10

type fieldRequest struct {
	Field   string `validate:"required"`
	Value   string
	Checked bool
}

type imageRequest struct {
	Index *int `validate:"required,min=0,max=4"`
	Value string
}

func (h *Handler) getDialog(w http.ResponseWriter, r *http.Request) {
	writeDialog(w, http.StatusOK, fromContext(r.Context()).ws.Editor.View())
}

// updateField serves POST /api/dialog/field {field, value, checked}.
func (h *Handler) updateField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	err := decodeRequest(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "field":
			req.Field, err = d.Str()
		case "value":
			req.Value, err = d.Str()
		case "checked":
			req.Checked, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil {
		err = h.validate.Struct(req)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := product.ParseField(req.Field)
	if err == nil {
		err = fromContext(r.Context()).ws.Editor.UpdateField(product.FieldUpdate{
			Field:   f,
			Value:   req.Value,
			Checked: req.Checked,
		})
	}
	h.dialogResult(w, r, err)
}

// updateImage serves POST /api/dialog/image {index, value}.
func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	err := decodeRequest(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "index":
			n, err := d.Int()
			req.Index = &n
			return err
		case "value":
			v, err := d.Str()
			req.Value = v
			return err
		default:
			return d.Skip()
		}
	})
	if err == nil {
		err = h.validate.Struct(req)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.dialogResult(w, r, fromContext(r.Context()).ws.Editor.UpdateImageAt(*req.Index, req.Value))
}

func (h *Handler) dialogResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		status := errorStatus(err)
		zctx.From(r.Context()).Info("Dialog update rejected", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeDialog(w, http.StatusOK, fromContext(r.Context()).ws.Editor.View())
}

func decodeRequest(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

// writeDialog encodes the dialog state. The draft keeps prices as typed;
// products use the catalog record shape.
func writeDialog(w http.ResponseWriter, status int, v editor.View) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("mode", func(e *jx.Encoder) { e.Str(v.Mode.String()) })
		e.Field("open", func(e *jx.Encoder) { e.Bool(v.Open) })
		e.Field("submitting", func(e *jx.Encoder) { e.Bool(v.Submitting) })
		e.Field("alert", func(e *jx.Encoder) { e.Str(v.Alert) })
		e.Field("form_error", func(e *jx.Encoder) { e.Str(v.FormError) })
		e.Field("can_add_image", func(e *jx.Encoder) { e.Bool(v.CanAddImage) })
		e.Field("draft", func(e *jx.Encoder) { encodeDraft(e, v.Draft) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range v.Products {
					catalog.EncodeProduct(e, p)
				}
			})
		})
	})
	writeJSON(w, status, e.Bytes())
}

func encodeDraft(e *jx.Encoder, d product.Draft) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field(string(product.FieldTitle), func(e *jx.Encoder) { e.Str(d.Title) })
		e.Field(string(product.FieldCategory), func(e *jx.Encoder) { e.Str(d.Category) })
		e.Field(string(product.FieldOriginPrice), func(e *jx.Encoder) { e.Str(d.OriginPrice) })
		e.Field(string(product.FieldPrice), func(e *jx.Encoder) { e.Str(d.Price) })
		e.Field(string(product.FieldUnit), func(e *jx.Encoder) { e.Str(d.Unit) })
		e.Field(string(product.FieldDescription), func(e *jx.Encoder) { e.Str(d.Description) })
		e.Field(string(product.FieldContent), func(e *jx.Encoder) { e.Str(d.Content) })
		e.Field(string(product.FieldEnabled), func(e *jx.Encoder) { e.Bool(d.Enabled) })
		e.Field(string(product.FieldImageURL), func(e *jx.Encoder) { e.Str(d.ImageURL) })
		e.Field("imagesUrl", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, u := range d.Images {
					e.Str(u)
				}
			})
		})
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
