package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hackerthon-gemini-agc/boni/internal/accumulator"
	"github.com/hackerthon-gemini-agc/boni/internal/capture"
	"github.com/hackerthon-gemini-agc/boni/internal/contract"
	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

type fakeGenerator struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, system, prompt string, _ float32, _ int32) (string, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	return f.response, f.err
}

type BrainSuite struct {
	suite.Suite

	gen   *fakeGenerator
	brain *Brain
}

func TestBrainSuite(t *testing.T) {
	suite.Run(t, new(BrainSuite))
}

func (s *BrainSuite) SetupTest() {
	s.gen = &fakeGenerator{}
	s.brain = NewWithGenerator(s.gen)
}

func (s *BrainSuite) samplePayload() (models.RawSample, *capture.Payload) {
	battery := 0.42
	sample := models.RawSample{
		At:              time.Date(2026, 3, 14, 23, 7, 0, 0, time.UTC),
		CPUFraction:     0.91,
		MemFraction:     0.63,
		BatteryFraction: &battery,
		AppName:         "Terminal",
		WindowTitle:     "vim — deploy.sh",
	}
	payload := &capture.Payload{
		Event: models.TriggerEvent{
			Reason:  models.ReasonFrustrationPattern,
			TS:      float64(sample.At.Unix()),
			AppName: "Terminal",
		},
		Summary: accumulator.Summary{
			DurationSeconds: 45,
			TotalScore:      6.5,
			EventCount:      3,
			DominantPattern: models.ReasonFrustrationPattern,
			AppSwitches:     2,
			Behavior:        models.BehaviorStats{BackspaceRatio: 0.5},
		},
	}
	return sample, payload
}

func (s *BrainSuite) TestReact_WellFormedResponse() {
	s.gen.response = `{"message": "I can't breathe in here.", "expression": "panic", "placement": "anchored-right-of-active-window", "mood": "overheated"}`

	sample, payload := s.samplePayload()
	reaction, err := s.brain.React(context.Background(), sample, payload, models.MoodChill)

	s.Require().NoError(err)
	s.Equal("I can't breathe in here.", reaction.Message)
	s.Equal(models.ExpressionPanic, reaction.Expression)
	s.Equal(models.MoodOverheated, reaction.Mood)
}

func (s *BrainSuite) TestReact_PromptCarriesStateAndPersona() {
	s.gen.response = `{"message": "hm", "expression": "neutral", "placement": "near-menu-bar", "mood": "chill"}`

	sample, payload := s.samplePayload()
	_, err := s.brain.React(context.Background(), sample, payload, models.MoodJudgy)
	s.Require().NoError(err)

	s.Contains(s.gen.lastSystem, "grumpy creature")
	s.Contains(s.gen.lastPrompt, "CPU load: 91%")
	s.Contains(s.gen.lastPrompt, "Battery: 42%")
	s.Contains(s.gen.lastPrompt, "Active app: Terminal")
	s.Contains(s.gen.lastPrompt, "Time: 23:07")
	s.Contains(s.gen.lastPrompt, "Previous mood: judgy")
	s.Contains(s.gen.lastPrompt, "Main pattern: frustration-pattern")
	s.Contains(s.gen.lastPrompt, "keeps deleting")
}

func (s *BrainSuite) TestReact_NilBatteryRendersAsAlwaysPowered() {
	s.gen.response = `{"message": "hm", "expression": "neutral", "placement": "near-menu-bar", "mood": "chill"}`

	sample, payload := s.samplePayload()
	sample.BatteryFraction = nil
	_, err := s.brain.React(context.Background(), sample, payload, models.MoodChill)
	s.Require().NoError(err)

	s.Contains(s.gen.lastPrompt, "Battery: N/A (always powered)")
}

func (s *BrainSuite) TestReact_ContractViolationDiscardsResponse() {
	s.gen.response = `{"message": "hi", "mood": "chill"}`

	sample, payload := s.samplePayload()
	reaction, err := s.brain.React(context.Background(), sample, payload, models.MoodChill)

	s.Nil(reaction)
	var violation *contract.Violation
	s.Require().ErrorAs(err, &violation)
}

func (s *BrainSuite) TestReact_GeneratorError() {
	s.gen.err = errors.New("deadline exceeded")

	sample, payload := s.samplePayload()
	reaction, err := s.brain.React(context.Background(), sample, payload, models.MoodChill)

	s.Nil(reaction)
	s.ErrorContains(err, "reaction call")
}

func (s *BrainSuite) TestReact_MemoriesInjected() {
	s.gen.response = `{"message": "hm", "expression": "neutral", "placement": "near-menu-bar", "mood": "chill"}`

	sample, payload := s.samplePayload()
	payload.Memories = []memory.Snippet{
		{Timestamp: "2026-03-13T22:00:00Z", Mood: "judgy", Message: "another late one, huh"},
	}
	_, err := s.brain.React(context.Background(), sample, payload, models.MoodChill)
	s.Require().NoError(err)

	s.Contains(s.gen.lastPrompt, "Past memories")
	s.Contains(s.gen.lastPrompt, "another late one, huh")
}

func (s *BrainSuite) TestPetReact() {
	s.gen.response = `{"message": "...don't stop.", "expression": "delighted", "placement": "centered-on-active-window", "mood": "pleased"}`

	reaction, err := s.brain.PetReact(context.Background(), models.MoodChill)
	s.Require().NoError(err)
	s.Equal("...don't stop.", reaction.Message)
	s.Contains(s.gen.lastPrompt, "petted")
}

func TestMemorySection_DropsOldestFirst(t *testing.T) {
	b := newPromptBuilder()

	long := strings.Repeat("walls of text about nothing in particular ", 40)
	snippets := []memory.Snippet{
		{Timestamp: "old", Mood: "chill", Message: long},
		{Timestamp: "mid", Mood: "chill", Message: long},
		{Timestamp: "new", Mood: "chill", Message: "short and recent"},
	}

	section := b.memorySection(snippets)
	if !strings.Contains(section, "short and recent") {
		t.Fatalf("newest snippet must survive the budget, got: %q", section)
	}
	if strings.Contains(section, "- old ") {
		t.Fatal("oldest snippet should be dropped first when over budget")
	}
}

func TestMemorySection_EmptyInput(t *testing.T) {
	b := newPromptBuilder()
	if got := b.memorySection(nil); got != "" {
		t.Fatalf("expected empty section, got %q", got)
	}
}

func TestBatteryLine(t *testing.T) {
	charging := 0.8
	tests := []struct {
		name     string
		sample   models.RawSample
		expected string
	}{
		{"charging", models.RawSample{BatteryFraction: &charging, Charging: true}, "80% (charging)"},
		{"discharging", models.RawSample{BatteryFraction: &charging}, "80%"},
		{"no battery", models.RawSample{}, "N/A (always powered)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batteryLine(tt.sample); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
