package notion

import (
	"encoding/json"
	"fmt"
)

// Block is the closed set of block variants the renderer understands.
// Variants are always pointers; anything else decodes to *Unsupported.
type Block interface {
	Base() *BlockBase
	isBlock()
}

type BlockBase struct {
	ID          string
	Type        string
	HasChildren bool
	Children    []Block
}

func (b *BlockBase) Base() *BlockBase { return b }

func (*BlockBase) isBlock() {}

type Paragraph struct {
	BlockBase
	Text  []RichText
	Color string
}

type Heading struct {
	BlockBase
	Level      int
	Text       []RichText
	Toggleable bool
}

type BulletedListItem struct {
	BlockBase
	Text []RichText
}

type NumberedListItem struct {
	BlockBase
	Text []RichText
}

type ToDo struct {
	BlockBase
	Text    []RichText
	Checked bool
}

type Toggle struct {
	BlockBase
	Text []RichText
}

type Quote struct {
	BlockBase
	Text []RichText
}

type Callout struct {
	BlockBase
	Text  []RichText
	Emoji string
}

type Code struct {
	BlockBase
	Text     []RichText
	Language string
	Caption  []RichText
}

type Image struct {
	BlockBase
	File File
}

type Divider struct {
	BlockBase
}

type Equation struct {
	BlockBase
	Expression string
}

type Bookmark struct {
	BlockBase
	URL     string
	Caption []RichText
}

type Unsupported struct {
	BlockBase
}

type textPayload struct {
	RichText     []RichText `json:"rich_text"`
	Color        string     `json:"color"`
	Checked      bool       `json:"checked"`
	IsToggleable bool       `json:"is_toggleable"`
	Language     string     `json:"language"`
	Caption      []RichText `json:"caption"`
	Icon         *struct {
		Type  string `json:"type"`
		Emoji string `json:"emoji"`
	} `json:"icon"`
}

// DecodeBlock dispatches on the block's type tag once and decodes the
// matching payload.
func DecodeBlock(data []byte) (Block, error) {
	var envelope struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode block %s: %w", envelope.ID, err)
	}

	base := BlockBase{ID: envelope.ID, Type: envelope.Type, HasChildren: envelope.HasChildren}
	payload, ok := fields[envelope.Type]
	if !ok || len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	decodeText := func() (textPayload, error) {
		var p textPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return textPayload{}, fmt.Errorf("decode %s block %s: %w", envelope.Type, envelope.ID, err)
		}
		return p, nil
	}

	switch envelope.Type {
	case "paragraph":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &Paragraph{BlockBase: base, Text: p.RichText, Color: p.Color}, nil
	case "heading_1", "heading_2", "heading_3":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		level := int(envelope.Type[len(envelope.Type)-1] - '0')
		return &Heading{BlockBase: base, Level: level, Text: p.RichText, Toggleable: p.IsToggleable}, nil
	case "bulleted_list_item":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &BulletedListItem{BlockBase: base, Text: p.RichText}, nil
	case "numbered_list_item":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &NumberedListItem{BlockBase: base, Text: p.RichText}, nil
	case "to_do":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &ToDo{BlockBase: base, Text: p.RichText, Checked: p.Checked}, nil
	case "toggle":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &Toggle{BlockBase: base, Text: p.RichText}, nil
	case "quote":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &Quote{BlockBase: base, Text: p.RichText}, nil
	case "callout":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		callout := &Callout{BlockBase: base, Text: p.RichText}
		if p.Icon != nil && p.Icon.Type == "emoji" {
			callout.Emoji = p.Icon.Emoji
		}
		return callout, nil
	case "code":
		p, err := decodeText()
		if err != nil {
			return nil, err
		}
		return &Code{BlockBase: base, Text: p.RichText, Language: p.Language, Caption: p.Caption}, nil
	case "image":
		var file File
		if err := json.Unmarshal(payload, &file); err != nil {
			return nil, fmt.Errorf("decode image block %s: %w", envelope.ID, err)
		}
		return &Image{BlockBase: base, File: file}, nil
	case "divider":
		return &Divider{BlockBase: base}, nil
	case "equation":
		var p struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode equation block %s: %w", envelope.ID, err)
		}
		return &Equation{BlockBase: base, Expression: p.Expression}, nil
	case "bookmark":
		var p struct {
			URL     string     `json:"url"`
			Caption []RichText `json:"caption"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode bookmark block %s: %w", envelope.ID, err)
		}
		return &Bookmark{BlockBase: base, URL: p.URL, Caption: p.Caption}, nil
	default:
		return &Unsupported{BlockBase: base}, nil
	}
}
