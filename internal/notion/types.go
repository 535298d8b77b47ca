package notion

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	FileTypeFile     = "file"
	FileTypeExternal = "external"
)

// File is a file object in one of its two hosted shapes: an internally
// hosted file behind a time-limited URL, or a stable external URL.
type File struct {
	Type       string
	URL        string
	ExpiryTime *time.Time
	Caption    []RichText
}

func (f *File) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type string `json:"type"`
		File *struct {
			URL        string     `json:"url"`
			ExpiryTime *time.Time `json:"expiry_time"`
		} `json:"file"`
		External *struct {
			URL string `json:"url"`
		} `json:"external"`
		Caption []RichText `json:"caption"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = File{Type: raw.Type, Caption: raw.Caption}
	switch raw.Type {
	case FileTypeFile:
		if raw.File != nil {
			f.URL = strings.TrimSpace(raw.File.URL)
			f.ExpiryTime = raw.File.ExpiryTime
		}
	case FileTypeExternal:
		if raw.External != nil {
			f.URL = strings.TrimSpace(raw.External.URL)
		}
	}

	return nil
}

func (f *File) IsHosted() bool {
	return f != nil && f.Type == FileTypeFile
}

func (f *File) Location() string {
	if f == nil {
		return ""
	}

	return f.URL
}

type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color"`
}

type RichText struct {
	Type        string      `json:"type"`
	PlainText   string      `json:"plain_text"`
	Href        *string     `json:"href"`
	Annotations Annotations `json:"annotations"`
	Equation    *struct {
		Expression string `json:"expression"`
	} `json:"equation"`
}

func (r RichText) Link() string {
	if r.Href == nil {
		return ""
	}

	return strings.TrimSpace(*r.Href)
}

func PlainText(parts []RichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}

	return b.String()
}

type SelectOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

type Property struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Title       []RichText     `json:"title"`
	RichText    []RichText     `json:"rich_text"`
	Date        *DateValue     `json:"date"`
	MultiSelect []SelectOption `json:"multi_select"`
	Checkbox    bool           `json:"checkbox"`
	URL         *string        `json:"url"`
}

type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Cover          *File               `json:"cover"`
	Properties     map[string]Property `json:"properties"`
}

func (p Page) HasProperty(name string) bool {
	_, ok := p.Properties[name]
	return ok
}

// Text returns the plain text of a title, rich_text or url property.
func (p Page) Text(name string) string {
	prop, ok := p.Properties[name]
	if !ok {
		return ""
	}

	switch prop.Type {
	case "title":
		return strings.TrimSpace(PlainText(prop.Title))
	case "url":
		if prop.URL == nil {
			return ""
		}
		return strings.TrimSpace(*prop.URL)
	default:
		return strings.TrimSpace(PlainText(prop.RichText))
	}
}

func (p Page) MultiSelect(name string) []string {
	prop, ok := p.Properties[name]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(prop.MultiSelect))
	for _, option := range prop.MultiSelect {
		if name := strings.TrimSpace(option.Name); name != "" {
			out = append(out, name)
		}
	}

	return out
}

func (p Page) DateStart(name string) string {
	prop, ok := p.Properties[name]
	if !ok || prop.Date == nil {
		return ""
	}

	return strings.TrimSpace(prop.Date.Start)
}

func (p Page) Checkbox(name string) bool {
	prop, ok := p.Properties[name]
	return ok && prop.Checkbox
}
