// Package viral generates social-media campaign packages for a topic,
// optionally personalized with a brand DNA profile. The contract is a
// fixed JSON object shape, schema-validated before it reaches the client.
package viral

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/startnerve/coursefactory/internal/llm"
	"github.com/startnerve/coursefactory/internal/prompts"
)

//go:embed schema.json
var campaignSchema string

// BrandDNA carries the voice profile mixed into every prompt. Zero values
// fall back to a generic voice.
type BrandDNA struct {
	Tone     string `json:"tone,omitempty"`
	Audience string `json:"audience,omitempty"`
	Angle    string `json:"angle,omitempty"`
	CTA      string `json:"cta,omitempty"`
}

// withDefaults fills unset fields with the generic voice.
func (d BrandDNA) withDefaults() BrandDNA {
	if d.Tone == "" {
		d.Tone = "Educational & Authoritative"
	}
	if d.Audience == "" {
		d.Audience = "a general audience"
	}
	if d.Angle == "" {
		d.Angle = "a unique perspective"
	}
	if d.CTA == "" {
		d.CTA = "Follow for more tips!"
	}
	return d
}

// Script is one verbatim platform script.
type Script struct {
	Hook         string `json:"hook"`
	Body         string `json:"body"`
	CallToAction string `json:"call_to_action"`
}

// Campaign is the full "campaign in a box" for one topic.
type Campaign struct {
	YouTubeShort     Script   `json:"youtube_short"`
	TikTokReel       Script   `json:"tiktok_reel"`
	InstagramCaption string   `json:"instagram_caption"`
	Hooks            []string `json:"hooks"`
	Titles           []string `json:"titles"`
	Hashtags         []string `json:"hashtags"`
}

// Generator produces campaigns through the text model.
type Generator struct {
	Text llm.TextGenerator
}

// NewGenerator creates a campaign generator.
func NewGenerator(text llm.TextGenerator) *Generator {
	return &Generator{Text: text}
}

// Generate asks the model for a campaign and validates the returned JSON
// against the embedded schema. Model output that fails validation is a
// generation failure: the client never sees a partially shaped campaign.
func (g *Generator) Generate(ctx context.Context, topic string, dna BrandDNA) (*Campaign, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	dna = dna.withDefaults()

	prompt := prompts.Format(prompts.MustGet("viral.json", "campaign"), map[string]string{
		"Topic":    topic,
		"Tone":     dna.Tone,
		"Audience": dna.Audience,
		"Angle":    dna.Angle,
		"CTA":      dna.CTA,
	})

	raw, err := g.Text.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("campaign generation failed: %w", err)
	}

	if err := validateCampaignJSON(raw); err != nil {
		return nil, err
	}

	var campaign Campaign
	if err := json.Unmarshal([]byte(raw), &campaign); err != nil {
		return nil, fmt.Errorf("failed to decode campaign JSON: %w", err)
	}
	return &campaign, nil
}

// validateCampaignJSON checks model output against the campaign schema.
func validateCampaignJSON(raw string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(campaignSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("campaign output is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("campaign output failed schema validation: %s", strings.Join(details, "; "))
	}
	return nil
}
