package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/flowmart/internal/catalog"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// workflowRow is a workflows table row. Author, tags and nodes are JSON
// stored as text.
type workflowRow struct {
	ID          string
	Position    int
	Slug        string
	Title       string
	Description string
	Price       float64
	Currency    string
	Author      string
	Tags        string
	Downloads   int
	Rating      float64
	Image       string
	Nodes       string
	Content     string
	CreatedAt   string
}

func toRow(w catalog.WorkflowRecord, position int) (workflowRow, error) {
	author, err := json.Marshal(w.Author)
	if err != nil {
		return workflowRow{}, err
	}
	tags := w.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return workflowRow{}, err
	}
	nodes := w.Nodes
	if nodes == nil {
		nodes = []catalog.Node{}
	}
	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return workflowRow{}, err
	}
	return workflowRow{
		ID:          w.ID,
		Position:    position,
		Slug:        w.Slug,
		Title:       w.Title,
		Description: w.Description,
		Price:       w.Price,
		Currency:    string(w.Currency),
		Author:      string(author),
		Tags:        string(tagsJSON),
		Downloads:   w.Downloads,
		Rating:      w.Rating,
		Image:       w.Image,
		Nodes:       string(nodesJSON),
		Content:     w.Content,
		CreatedAt:   w.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (r workflowRow) record() (catalog.WorkflowRecord, error) {
	w := catalog.WorkflowRecord{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Currency:    catalog.Currency(r.Currency),
		Downloads:   r.Downloads,
		Rating:      r.Rating,
		Image:       r.Image,
		Content:     r.Content,
	}
	if err := json.Unmarshal([]byte(r.Author), &w.Author); err != nil {
		return w, fmt.Errorf("decoding author of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Tags), &w.Tags); err != nil {
		return w, fmt.Errorf("decoding tags of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Nodes), &w.Nodes); err != nil {
		return w, fmt.Errorf("decoding nodes of %s: %w", r.ID, err)
	}
	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return w, fmt.Errorf("parsing created_at of %s: %w", r.ID, err)
	}
	w.CreatedAt = t
	return w, nil
}
