package models

// Mood is boni's current emotional state. Closed set; the mood engine is the
// only writer of the process-wide mood cell.
type Mood string

const (
	MoodChill      Mood = "chill"
	MoodStuffed    Mood = "stuffed"
	MoodOverheated Mood = "overheated"
	MoodDying      Mood = "dying"
	MoodSuspicious Mood = "suspicious"
	MoodJudgy      Mood = "judgy"
	MoodPleased    Mood = "pleased"
	MoodNocturnal  Mood = "nocturnal"
)

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodChill, MoodStuffed, MoodOverheated, MoodDying,
		MoodSuspicious, MoodJudgy, MoodPleased, MoodNocturnal:
		return true
	}
	return false
}

// MoodEmoji maps each mood to the glyph shown by the presentation layer.
var MoodEmoji = map[Mood]string{
	MoodChill:      "😌",
	MoodStuffed:    "😤",
	MoodOverheated: "🥵",
	MoodDying:      "💀",
	MoodSuspicious: "👀",
	MoodJudgy:      "😒",
	MoodPleased:    "☺️",
	MoodNocturnal:  "😴",
}

// DefaultMessages are shown before the first validated reaction arrives.
var DefaultMessages = map[Mood]string{
	MoodChill:      "Just moved in. Nice machine you got.",
	MoodStuffed:    "I just got here and it's already crowded...",
	MoodOverheated: "Is it always this hot in here?!",
	MoodDying:      "I arrived just in time to watch us both die.",
	MoodSuspicious: "...what are you up to?",
	MoodJudgy:      "So this is what you do all day?",
	MoodPleased:    "Oh, nice. We're organized today.",
	MoodNocturnal:  "You're still awake? ...I guess I am too now.",
}

// Expression is the character expression requested by the reasoning service.
type Expression string

const (
	ExpressionNeutral    Expression = "neutral"
	ExpressionGrumpy     Expression = "grumpy"
	ExpressionSmug       Expression = "smug"
	ExpressionPanic      Expression = "panic"
	ExpressionSleepy     Expression = "sleepy"
	ExpressionDelighted  Expression = "delighted"
	ExpressionSuspicious Expression = "suspicious"
	ExpressionPathetic   Expression = "pathetic"
)

// Valid reports whether x is one of the known expressions.
func (x Expression) Valid() bool {
	switch x {
	case ExpressionNeutral, ExpressionGrumpy, ExpressionSmug, ExpressionPanic,
		ExpressionSleepy, ExpressionDelighted, ExpressionSuspicious, ExpressionPathetic:
		return true
	}
	return false
}

// Placement tells the presentation layer where to anchor the speech bubble.
type Placement string

const (
	PlacementRightOfWindow Placement = "anchored-right-of-active-window"
	PlacementCenterWindow  Placement = "centered-on-active-window"
	PlacementNearMenuBar   Placement = "near-menu-bar"
)

// Valid reports whether p is one of the known placements.
func (p Placement) Valid() bool {
	switch p {
	case PlacementRightOfWindow, PlacementCenterWindow, PlacementNearMenuBar:
		return true
	}
	return false
}

// Reaction is a fully validated reasoning response. Instances only ever come
// out of the contract validator; a malformed response never becomes one.
type Reaction struct {
	Message    string     `json:"message"`
	Expression Expression `json:"expression"`
	Placement  Placement  `json:"placement"`
	Mood       Mood       `json:"mood"`
}
