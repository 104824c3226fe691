package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

type ValidatorSuite struct {
	suite.Suite
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

const wellFormed = `{
	"message": "I ate too much.",
	"expression": "grumpy",
	"placement": "near-menu-bar",
	"mood": "stuffed"
}`

func (s *ValidatorSuite) TestValidate_WellFormed() {
	reaction, err := Validate([]byte(wellFormed))
	s.Require().NoError(err)

	s.Equal("I ate too much.", reaction.Message)
	s.Equal(models.ExpressionGrumpy, reaction.Expression)
	s.Equal(models.PlacementNearMenuBar, reaction.Placement)
	s.Equal(models.MoodStuffed, reaction.Mood)
}

func (s *ValidatorSuite) TestValidate_MarkdownFencedObject_Accepted() {
	fenced := "```json\n" + wellFormed + "\n```"
	reaction, err := Validate([]byte(fenced))
	s.Require().NoError(err)
	s.Equal(models.MoodStuffed, reaction.Mood)
}

func (s *ValidatorSuite) TestValidate_Failures() {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{
			name:  "not json",
			raw:   "I ate too much.",
			field: "",
		},
		{
			name:  "missing mood",
			raw:   `{"message":"m","expression":"grumpy","placement":"near-menu-bar"}`,
			field: "mood",
		},
		{
			name:  "missing message",
			raw:   `{"expression":"grumpy","placement":"near-menu-bar","mood":"chill"}`,
			field: "message",
		},
		{
			name:  "extra field",
			raw:   `{"message":"m","expression":"grumpy","placement":"near-menu-bar","mood":"chill","confidence":0.9}`,
			field: "confidence",
		},
		{
			name:  "expression outside allowed set",
			raw:   `{"message":"m","expression":"ecstatic","placement":"near-menu-bar","mood":"chill"}`,
			field: "expression",
		},
		{
			name:  "placement outside allowed set",
			raw:   `{"message":"m","expression":"grumpy","placement":"bottom-left","mood":"chill"}`,
			field: "placement",
		},
		{
			name:  "mood outside allowed set",
			raw:   `{"message":"m","expression":"grumpy","placement":"near-menu-bar","mood":"furious"}`,
			field: "mood",
		},
		{
			name:  "empty message",
			raw:   `{"message":"  ","expression":"grumpy","placement":"near-menu-bar","mood":"chill"}`,
			field: "message",
		},
		{
			name:  "wrong type for message",
			raw:   `{"message":42,"expression":"grumpy","placement":"near-menu-bar","mood":"chill"}`,
			field: "",
		},
		{
			name:  "trailing second object",
			raw:   wellFormed + `{"message":"again"}`,
			field: "",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			reaction, err := Validate([]byte(tt.raw))
			require.Error(s.T(), err)
			assert.Nil(s.T(), reaction, "a failed validation must never yield a partial reaction")

			var v *Violation
			require.ErrorAs(s.T(), err, &v)
			assert.Equal(s.T(), tt.field, v.Field)
		})
	}
}

func (s *ValidatorSuite) TestValidate_DivergentOutcomes() {
	// The well-formed and malformed twins must diverge: one reaction, one error.
	good, goodErr := Validate([]byte(wellFormed))
	bad, badErr := Validate([]byte(`{"message":"m","expression":"grumpy","placement":"near-menu-bar"}`))

	s.NotNil(good)
	s.NoError(goodErr)
	s.Nil(bad)
	s.Error(badErr)
}
