// Package report summarises an item subtree with an LLM.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/taxilian/tplan/internal/model"
	"github.com/taxilian/tplan/internal/nav"
)

// DefaultMaxDepth bounds how far Collect descends below the root.
const DefaultMaxDepth = 4

// Lister fetches the collection at a locator.
type Lister interface {
	List(ctx context.Context, locator string) ([]model.Item, error)
}

// Node is one item of a collected subtree.
type Node struct {
	ID          model.ItemID `yaml:"id"`
	Kind        model.Kind   `yaml:"kind"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description,omitempty"`
	Progress    int          `yaml:"progress"`
	Difficulty  string       `yaml:"difficulty,omitempty"`
	Begin       string       `yaml:"begin,omitempty"`
	End         string       `yaml:"end,omitempty"`
	Children    []*Node      `yaml:"children,omitempty"`
}

// Tree is a subtree rooted at one item.
type Tree struct {
	Root *Node `yaml:"root"`
	// Truncated is set when some branches were cut at the depth limit.
	Truncated bool `yaml:"truncated,omitempty"`
}

// Collect walks the subtree below root through the children locators.
// Personal items are skipped like everywhere else.
func Collect(ctx context.Context, lister Lister, root model.Item, maxDepth int) (*Tree, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	t := &Tree{Root: nodeFor(root)}
	if err := t.fill(ctx, lister, t.Root, 1, maxDepth); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) fill(ctx context.Context, lister Lister, parent *Node, depth, maxDepth int) error {
	if depth > maxDepth {
		t.Truncated = true
		return nil
	}
	items, err := lister.List(ctx, nav.ChildLocator(parent.ID))
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", parent.ID, err)
	}
	for _, it := range items {
		if it.Kind == model.KindPersonal {
			continue
		}
		child := nodeFor(it)
		parent.Children = append(parent.Children, child)
		if it.Kind == model.KindProject {
			if err := t.fill(ctx, lister, child, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

func nodeFor(it model.Item) *Node {
	n := &Node{
		ID:       it.ID,
		Kind:     it.Kind,
		Title:    it.TitleText(),
		Progress: it.Progress,
	}
	if it.Description != nil {
		n.Description = *it.Description
	}
	if it.BeginTime != nil {
		n.Begin = *it.BeginTime
	}
	if it.EndTime != nil {
		n.End = *it.EndTime
	}
	switch it.DiffLevel {
	case model.DiffEasy:
		n.Difficulty = "easy"
	case model.DiffMedium:
		n.Difficulty = "medium"
	case model.DiffHard:
		n.Difficulty = "hard"
	}
	return n
}

// Count returns the number of items in the tree, root included.
func (t *Tree) Count() int {
	var walk func(n *Node) int
	walk = func(n *Node) int {
		total := 1
		for _, c := range n.Children {
			total += walk(c)
		}
		return total
	}
	if t.Root == nil {
		return 0
	}
	return walk(t.Root)
}

// YAML renders the tree as the prompt payload.
func (t *Tree) YAML() (string, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode tree: %w", err)
	}
	return string(data), nil
}

// Generator turns a collected tree into a markdown report.
type Generator interface {
	Generate(ctx context.Context, t *Tree) (string, error)
}

const systemPrompt = `You write short status reports for a project/task tracker.
You receive a YAML tree of items. Progress is a percentage; tasks are done at 100.
Write markdown with: a one-paragraph summary, a "Done" list, an "In progress" list
and a "Risks" list naming hard items with little progress. Do not invent items.`

// AnthropicGenerator generates reports with the Anthropic Messages API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicGenerator creates a generator. apiKey must be non-empty.
func NewAnthropicGenerator(apiKey, model string, maxTokens int64, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("no API key: set [report] api_key or ANTHROPIC_API_KEY")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicGenerator{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

func (g *AnthropicGenerator) Generate(ctx context.Context, t *Tree) (string, error) {
	payload, err := t.YAML()
	if err != nil {
		return "", err
	}
	prompt := "Items:\n\n" + payload
	if t.Truncated {
		prompt += "\nSome deeper branches were omitted.\n"
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("report request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("report response contained no text")
	}
	return out.String(), nil
}
