package imageref

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const coverSlot = "cover"

var ErrInvalidID = errors.New("invalid identifier")

// Reference is the logical identity of a displayable image: the owning page
// plus an optional block. An empty BlockID addresses the page cover.
type Reference struct {
	PageID  string
	BlockID string
}

func NewReference(pageID string, blockID string) (Reference, error) {
	page, err := NormalizeID(pageID)
	if err != nil {
		return Reference{}, fmt.Errorf("page id %q: %w", pageID, err)
	}

	ref := Reference{PageID: page}
	if strings.TrimSpace(blockID) == "" {
		return ref, nil
	}

	block, err := NormalizeID(blockID)
	if err != nil {
		return Reference{}, fmt.Errorf("block id %q: %w", blockID, err)
	}
	ref.BlockID = block

	return ref, nil
}

func (r Reference) IsCover() bool {
	return r.BlockID == ""
}

// Key is stable across processes and matches img_<page>_<block|cover>.
func (r Reference) Key() string {
	slot := r.BlockID
	if slot == "" {
		slot = coverSlot
	}

	return "img_" + r.PageID + "_" + slot
}

// ElementID is usable as an HTML id attribute.
func (r Reference) ElementID() string {
	slot := r.BlockID
	if slot == "" {
		slot = coverSlot
	}

	return "img-" + strings.ReplaceAll(r.PageID, "-", "") + "-" + strings.ReplaceAll(slot, "-", "")
}

func (r Reference) String() string {
	return r.Key()
}

// IsIdentifier reports whether value has the shape of a Notion object id:
// 32 hex digits, optionally dashed as 8-4-4-4-12.
func IsIdentifier(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) != 32 && len(value) != 36 {
		return false
	}

	_, err := uuid.Parse(value)
	return err == nil
}

func NormalizeID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !IsIdentifier(value) {
		return "", ErrInvalidID
	}

	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", ErrInvalidID
	}

	return parsed.String(), nil
}
