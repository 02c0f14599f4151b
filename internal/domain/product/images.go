package product

import "github.com/go-faster/errors"

var (
	// ErrImageIndex is returned for a slot index outside the editable range.
	ErrImageIndex = errors.New("image slot index out of range")
	// ErrImageSlotUnavailable is returned when a new empty slot would break
	// the slot invariants (list full, or already ending in an empty slot).
	ErrImageSlotUnavailable = errors.New("no image slot can be added")
)

// SetImage writes value into slot index and then keeps the list exactly one
// empty slot ahead of the last filled one, up to MaxImages slots.
//
// Index may address an existing slot, or the next one while the list is
// below MaxImages.
func (d *Draft) SetImage(index int, value string) error {
	if index < 0 || index > len(d.Images) || index >= MaxImages {
		return errors.Wrapf(ErrImageIndex, "index %d, %d slots", index, len(d.Images))
	}
	if index == len(d.Images) {
		d.Images = append(d.Images, value)
	} else {
		d.Images[index] = value
	}

	// Grow: filling the last slot opens the next one.
	if value != "" && index == len(d.Images)-1 && len(d.Images) < MaxImages {
		d.Images = append(d.Images, "")
	}
	// Shrink: clearing a slot while the list already ends empty drops the tail.
	if value == "" && len(d.Images) > 1 && d.Images[len(d.Images)-1] == "" {
		d.Images = d.Images[:len(d.Images)-1]
	}
	// A slot cleared in the middle may leave several empty slots at the end.
	for n := len(d.Images); n > 1 && d.Images[n-1] == "" && d.Images[n-2] == ""; n-- {
		d.Images = d.Images[:n-1]
	}
	return nil
}

// AddImageSlot appends one empty slot.
func (d *Draft) AddImageSlot() error {
	n := len(d.Images)
	if n >= MaxImages || (n > 0 && d.Images[n-1] == "") {
		return ErrImageSlotUnavailable
	}
	d.Images = append(d.Images, "")
	return nil
}

// RemoveImageSlot drops the last slot. It reports whether a slot was removed.
func (d *Draft) RemoveImageSlot() bool {
	if len(d.Images) == 0 {
		return false
	}
	d.Images = d.Images[:len(d.Images)-1]
	return true
}

// CanAddImage reports whether AddImageSlot would succeed.
func (d Draft) CanAddImage() bool {
	n := len(d.Images)
	return n < MaxImages && (n == 0 || d.Images[n-1] != "")
}
