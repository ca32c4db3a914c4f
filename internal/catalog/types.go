package catalog

import (
	"strings"
	"time"
)

// Currency is the ISO code a workflow is priced in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	return c == USD || c == EUR
}

// Author is the publisher of a workflow.
type Author struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	AvatarURL string `json:"avatarUrl" yaml:"avatar_url" validate:"omitempty,url"`
	Verified  bool   `json:"verified" yaml:"verified"`
}

// Node is a third-party system a workflow integrates with. Order matters for display.
type Node struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	IconURL string `json:"iconUrl" yaml:"icon_url" validate:"omitempty,url"`
}

// WorkflowRecord is an immutable catalog entry. Records handed out by the
// Store share their slices with the store and must not be modified.
type WorkflowRecord struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title" validate:"required"`
	Description string    `json:"description" yaml:"description"`
	Price       float64   `json:"price" yaml:"price" validate:"gte=0"`
	Currency    Currency  `json:"currency" yaml:"currency" validate:"required,oneof=USD EUR"`
	Author      Author    `json:"author" yaml:"author"`
	Tags        []string  `json:"tags" yaml:"tags" validate:"dive,required"`
	Downloads   int       `json:"downloads" yaml:"downloads" validate:"gte=0"`
	Rating      float64   `json:"rating" yaml:"rating" validate:"gte=0,lte=5"`
	Image       string    `json:"image" yaml:"image" validate:"omitempty,url"`
	Nodes       []Node    `json:"nodes" yaml:"nodes" validate:"dive"`
	Content     string    `json:"content" yaml:"content"`
	CreatedAt   time.Time `json:"createdAt" yaml:"created_at"`
}

// HasTag reports whether any tag equals tag, ignoring case.
func (w WorkflowRecord) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Matches reports whether the title, description or any tag contains text,
// ignoring case. An empty text matches everything.
func (w WorkflowRecord) Matches(text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(w.Title), needle) ||
		strings.Contains(strings.ToLower(w.Description), needle) {
		return true
	}
	for _, t := range w.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Summary is the compact view of a record sent to the search model.
type Summary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// Summarize returns the model-facing summary of w.
func (w WorkflowRecord) Summarize() Summary {
	return Summary{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Tags:        strings.Join(w.Tags, ", "),
	}
}
