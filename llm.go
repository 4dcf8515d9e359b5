package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	log "github.com/sirupsen/logrus"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const llmTimeout = 60 * time.Second

const digestSystemPrompt = `You are an assistant that writes a daily engineering digest (WDWDY).
Integrate the provided transcripts, GitHub commits, and Trello activity into precise, audit-friendly Markdown.
Keep sections: Day Range, Overview, Daily Log, Cross-Day, References.`

// SummarizeDigest asks the model for a polished digest built from the
// same inputs as the local draft. Single request, no streaming.
func SummarizeDigest(cfg Config, in DigestInput) (string, error) {
	if !cfg.LLMConfigured() {
		return "", fmt.Errorf("anthropic_api_key is not configured")
	}
	return chatComplete(cfg.AnthropicAPIKey, cfg.LLMModel, digestSystemPrompt, buildUserContent(in))
}

func buildUserContent(in DigestInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a daily digest (WDWDY) covering %s → %s\n", in.Window.SinceDate(), in.Window.UntilDate())
	b.WriteString("Integrate: transcripts, GitHub commits, Trello activity.\n")
	b.WriteString("Use precise, audit-friendly Markdown.\n")

	b.WriteString("\n== Transcripts ==\n")
	for _, t := range in.Transcripts {
		fmt.Fprintf(&b, "- %s", t.Filename)
		if t.DateGuess != "" {
			fmt.Fprintf(&b, " (%s)", t.DateGuess)
		}
		b.WriteString("\n" + clip(t.Text, 2000) + "\n\n")
	}

	b.WriteString("\n== GitHub Commits ==\n")
	for _, g := range in.Commits {
		fmt.Fprintf(&b, "%s (%s)\n", g.Repo, g.Branch)
		for _, c := range g.Commits {
			fmt.Fprintf(&b, "- %s %s: %s (%s)\n", c.Date, c.Author, firstLine(c.Message), c.URL)
		}
	}

	b.WriteString("\n== Trello Meeting Notes ==\n")
	for _, c := range in.Notes {
		fmt.Fprintf(&b, "- %s %s (%s)\n  Desc: %s\n", c.DateLastActivity, c.Name, c.URL, clip(c.Desc, 500))
		for _, cm := range c.Comments {
			fmt.Fprintf(&b, "  * %s %s: %s\n", cm.Date, cm.Member, cm.Text)
		}
		for _, a := range c.Attachments {
			fmt.Fprintf(&b, "  * [%s](%s)\n", a.Name, a.URL)
		}
	}

	b.WriteString("\n== Trello Board Activity ==\n")
	for _, g := range in.Activity {
		fmt.Fprintf(&b, "%s:\n", g.Column)
		for _, card := range g.Cards {
			fmt.Fprintf(&b, "- %s\n", cardHeading(card))
			for _, ev := range card.Events {
				fmt.Fprintf(&b, "  * %s\n", eventLine(ev))
			}
		}
	}
	return b.String()
}

func chatComplete(apiKey, model, systemPrompt, userContent string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	ctx, cancel := context.WithTimeout(context.Background(), llmTimeout)
	defer cancel()

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm response size=%d tokens_in=%d tokens_out=%d", len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}
