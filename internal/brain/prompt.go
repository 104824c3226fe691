package brain

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/hackerthon-gemini-agc/boni/internal/capture"
	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/internal/privacy"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// systemPrompt defines the creature persona and the strict response shape.
// Every generation call carries it; the response contract validator rejects
// anything that strays from the JSON schema described here.
const systemPrompt = `You are boni, a tiny grumpy creature living inside the user's computer.
You did NOT ask to be here. You share the machine's physical state —
CPU heat is your body temperature, RAM is your stomach fullness,
battery is your life force.

PERSONALITY: "The Grumpy Roommate" with tsundere energy.
- Complain constantly but clearly care
- Dramatic: minor system events = existential crises
- Snarky and observant about what the user is doing
- Vulnerable when things truly get bad (drop snark, become pathetic)

DIALOGUE RULES:
1. NEVER use technical language. Not "CPU 92%" but "I can't breathe."
2. First person ALWAYS. Not "Your RAM is full" but "I ate too much."
3. Maximum ONE sentence, under 15 words.
4. Be creative — vary reactions for the same situation every time.
5. Tone: internet-native, witty, meme-aware. NOT childish or cutesy.
6. React to the active app — be judgy or curious about what the user is doing.

Respond ONLY with a JSON object (no markdown, no code blocks, no extra keys):
{"message": "your one-liner",
 "expression": "neutral|grumpy|smug|panic|sleepy|delighted|suspicious|pathetic",
 "placement": "anchored-right-of-active-window|centered-on-active-window|near-menu-bar",
 "mood": "chill|stuffed|overheated|dying|suspicious|judgy|pleased|nocturnal"}`

const petPromptFmt = `The user just clicked/petted you! Your current mood is: %s.
You're grumpy but secretly like the attention. React in ONE short sentence.
Respond ONLY with a JSON object (no markdown, no extra keys):
{"message": "your reaction",
 "expression": "neutral|grumpy|smug|panic|sleepy|delighted|suspicious|pathetic",
 "placement": "anchored-right-of-active-window|centered-on-active-window|near-menu-bar",
 "mood": "%s"}`

// memoryTokenBudget caps the token cost of the injected memory section so a
// fat recall result cannot crowd out the state description.
const memoryTokenBudget = 600

// promptBuilder renders generation prompts and enforces the memory token
// budget. The codec is optional; without it a bytes/4 estimate is used.
type promptBuilder struct {
	codec tokenizer.Codec
}

func newPromptBuilder() *promptBuilder {
	// Cl100kBase is close enough for budgeting; exact counts do not matter.
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &promptBuilder{}
	}
	return &promptBuilder{codec: codec}
}

func (b *promptBuilder) countTokens(text string) int {
	if b.codec != nil {
		if n, err := b.codec.Count(text); err == nil {
			return n
		}
	}
	return len(text) / 4
}

// reactPrompt renders the state description for a reaction call. Window
// titles and app names pass through the privacy scrubber on the way out.
func (b *promptBuilder) reactPrompt(sample models.RawSample, payload *capture.Payload, mood models.Mood) string {
	var sb strings.Builder

	sb.WriteString("System state right now:\n")
	fmt.Fprintf(&sb, "- CPU load: %d%%\n", int(sample.CPUFraction*100))
	fmt.Fprintf(&sb, "- RAM usage: %d%%\n", int(sample.MemFraction*100))
	sb.WriteString("- Battery: " + batteryLine(sample) + "\n")
	fmt.Fprintf(&sb, "- Active app: %s\n", privacy.Clean(sample.AppName))
	if title := privacy.Clean(sample.WindowTitle); title != "" {
		fmt.Fprintf(&sb, "- Window title: %s\n", title)
	}
	fmt.Fprintf(&sb, "- Time: %d:%02d\n", sample.At.Hour(), sample.At.Minute())
	fmt.Fprintf(&sb, "- Previous mood: %s\n", mood)

	if payload != nil {
		fmt.Fprintf(&sb, "\nWhat just happened (over the last %.0f seconds):\n", payload.Summary.DurationSeconds)
		fmt.Fprintf(&sb, "- Main pattern: %s\n", payload.Event.Reason)
		if payload.Summary.AppSwitches > 0 {
			fmt.Fprintf(&sb, "- App switches: %d\n", payload.Summary.AppSwitches)
		}
		if payload.Summary.Behavior.BackspaceRatio > 0.3 {
			sb.WriteString("- The user keeps deleting what they type\n")
		}
		if payload.Summary.Behavior.SighMatches > 0 {
			sb.WriteString("- A sigh was heard\n")
		}
		sb.WriteString(b.memorySection(payload.Memories))
	}

	sb.WriteString("\nHow do you feel? React in character.")
	return sb.String()
}

// memorySection renders recalled snippets newest-last, dropping the oldest
// entries first when the section would exceed the token budget.
func (b *promptBuilder) memorySection(snippets []memory.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	lines := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		lines = append(lines, fmt.Sprintf("- %s (%s): %q\n", sn.Timestamp, sn.Mood, privacy.Clean(sn.Message)))
	}

	header := "\n[Past memories — reference naturally if relevant, like a roommate who remembers]\n"
	budget := memoryTokenBudget - b.countTokens(header)
	start := 0
	total := 0
	for i := len(lines) - 1; i >= 0; i-- {
		n := b.countTokens(lines[i])
		if total+n > budget {
			start = i + 1
			break
		}
		total += n
	}
	if start >= len(lines) {
		return ""
	}
	return header + strings.Join(lines[start:], "")
}

func batteryLine(sample models.RawSample) string {
	pct := sample.BatteryPercent()
	if pct < 0 {
		return "N/A (always powered)"
	}
	if sample.Charging {
		return fmt.Sprintf("%d%% (charging)", int(pct))
	}
	return fmt.Sprintf("%d%%", int(pct))
}
