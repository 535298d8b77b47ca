package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"notionblog/internal/markdown"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Author struct {
	ID         string `yaml:"id" validate:"required"`
	TwitterURL string `yaml:"twitterUrl" validate:"omitempty,url"`
	Icon       string `yaml:"icon"`
}

// CodeTheme picks the chroma styles for code blocks per color scheme.
type CodeTheme struct {
	Light string `yaml:"light" validate:"omitempty,chromastyle"`
	Dark  string `yaml:"dark" validate:"omitempty,chromastyle"`
}

func (t CodeTheme) Markdown() markdown.CodeTheme {
	return markdown.CodeTheme{Light: t.Light, Dark: t.Dark}
}

// SiteConfig holds the texts and links shown around the content.
type SiteConfig struct {
	Lang        string `yaml:"lang" validate:"omitempty,bcp47_language_tag"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`

	TwitterURL      string `yaml:"twitterUrl" validate:"omitempty,url"`
	FarcasterURL    string `yaml:"farcasterUrl" validate:"omitempty,url"`
	InstagramURL    string `yaml:"instagramUrl" validate:"omitempty,url"`
	GithubURL       string `yaml:"githubUrl" validate:"omitempty,url"`
	DiscordID       string `yaml:"discordId"`
	TwitterUsername string `yaml:"twitterUsername" validate:"omitempty,excludes=@"`

	DefaultImage string `yaml:"defaultImage"`
	AdminName    string `yaml:"adminName"`
	Copyright    string `yaml:"copyright"`
	CopyrightURL string `yaml:"copyrightUrl" validate:"omitempty,url"`

	NotFoundMessage     string `yaml:"notFoundMessage"`
	NotFoundTitle       string `yaml:"notFoundTitle"`
	NotFoundDescription string `yaml:"notFoundDescription"`
	ReturnToHome        string `yaml:"returnToHome"`

	// FooterMarkdown is rendered below every page.
	FooterMarkdown string `yaml:"footerMarkdown"`

	CodeTheme CodeTheme `yaml:"codeTheme"`

	Authors []Author `yaml:"authors" validate:"dive"`
}

func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Lang:                "en",
		Title:               "Notion Blog",
		DefaultImage:        "/static/site-cover.png",
		NotFoundMessage:     "Page not found",
		NotFoundTitle:       "Page Not Found | 404 Error",
		NotFoundDescription: "The page you are looking for could not be found.",
		ReturnToHome:        "Return to Home",
		CodeTheme: CodeTheme{
			Light: markdown.DefaultCodeTheme().Light,
			Dark:  markdown.DefaultCodeTheme().Dark,
		},
	}
}

// LoadSiteConfig reads path as YAML over the defaults. An empty path yields
// the defaults.
func LoadSiteConfig(path string) (SiteConfig, error) {
	site := DefaultSiteConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return site, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SiteConfig{}, fmt.Errorf("read site config: %w", err)
	}

	return ParseSiteConfig(data)
}

func ParseSiteConfig(data []byte) (SiteConfig, error) {
	var parsed SiteConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return SiteConfig{}, fmt.Errorf("parse site config: %w", err)
	}

	site := parsed.withDefaults()
	if err := site.Validate(); err != nil {
		return SiteConfig{}, err
	}

	return site, nil
}

func (s SiteConfig) withDefaults() SiteConfig {
	defaults := DefaultSiteConfig()
	fill := func(value *string, fallback string) {
		if strings.TrimSpace(*value) == "" {
			*value = fallback
		}
	}

	fill(&s.Lang, defaults.Lang)
	fill(&s.Title, defaults.Title)
	fill(&s.DefaultImage, defaults.DefaultImage)
	fill(&s.NotFoundMessage, defaults.NotFoundMessage)
	fill(&s.NotFoundTitle, defaults.NotFoundTitle)
	fill(&s.NotFoundDescription, defaults.NotFoundDescription)
	fill(&s.ReturnToHome, defaults.ReturnToHome)
	fill(&s.CodeTheme.Light, defaults.CodeTheme.Light)
	fill(&s.CodeTheme.Dark, defaults.CodeTheme.Dark)

	return s
}

func (s SiteConfig) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("chromastyle", func(fl validator.FieldLevel) bool {
		return markdown.KnownStyle(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate site config: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("invalid site config: %s", strings.Join(problems, ", "))
}

// AuthorByID returns the configured author matching id, if any.
func (s SiteConfig) AuthorByID(id string) (Author, bool) {
	id = strings.TrimSpace(id)
	for _, author := range s.Authors {
		if author.ID == id {
			return author, true
		}
	}

	return Author{}, false
}
