// Package brain turns an accepted trigger payload into a validated reaction
// by calling the Gemini API. Malformed responses are rejected by the response
// contract and never repaired; the caller discards the attempt.
package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/hackerthon-gemini-agc/boni/internal/capture"
	"github.com/hackerthon-gemini-agc/boni/internal/contract"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

const (
	reactTemperature float32 = 0.9
	petTemperature   float32 = 1.0
	reactMaxTokens   int32   = 160
	petMaxTokens     int32   = 120
)

// Generator produces raw model text for a prompt. Satisfied by the Gemini
// client; tests substitute a canned implementation.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, temperature float32, maxTokens int32) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, system, prompt string, temperature float32, maxTokens int32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(temperature),
		MaxOutputTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Brain wraps a Generator with the persona prompts and the response contract.
type Brain struct {
	gen     Generator
	prompts *promptBuilder
}

// New builds a Brain backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Brain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewWithGenerator(&geminiGenerator{client: client, model: model}), nil
}

// NewWithGenerator builds a Brain on an arbitrary Generator.
func NewWithGenerator(gen Generator) *Brain {
	return &Brain{gen: gen, prompts: newPromptBuilder()}
}

// React generates a reaction to an accepted trigger payload. The raw model
// text goes through the response contract; a violation discards the whole
// response and leaves mood state untouched.
func (b *Brain) React(ctx context.Context, sample models.RawSample, payload *capture.Payload, mood models.Mood) (*models.Reaction, error) {
	start := time.Now()
	prompt := b.prompts.reactPrompt(sample, payload, mood)

	raw, err := b.gen.Generate(ctx, systemPrompt, prompt, reactTemperature, reactMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("reaction call: %w", err)
	}

	reaction, err := contract.Validate([]byte(raw))
	if err != nil {
		log.Warn().
			Err(err).
			Str("reason", string(payload.Event.Reason)).
			Msg("Reaction response rejected by contract")
		return nil, err
	}

	log.Debug().
		Str("mood", string(reaction.Mood)).
		Dur("elapsed", time.Since(start)).
		Msg("Reaction generated")
	return reaction, nil
}

// PetReact generates a reaction to the user clicking the creature. Same
// contract rules apply.
func (b *Brain) PetReact(ctx context.Context, mood models.Mood) (*models.Reaction, error) {
	prompt := fmt.Sprintf(petPromptFmt, mood, mood)

	raw, err := b.gen.Generate(ctx, systemPrompt, prompt, petTemperature, petMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("pet reaction call: %w", err)
	}

	reaction, err := contract.Validate([]byte(raw))
	if err != nil {
		log.Warn().Err(err).Msg("Pet reaction rejected by contract")
		return nil, err
	}
	return reaction, nil
}
