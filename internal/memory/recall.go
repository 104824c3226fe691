package memory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hackerthon-gemini-agc/boni/internal/privacy"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// LocalSource supplies recency-ranked snippets from the local history store.
type LocalSource interface {
	RecentSnippets(ctx context.Context, n int) ([]Snippet, error)
}

// Recaller fuses remote similarity search with local recency into one
// ranked snippet list for the prompt. Both sources are optional.
type Recaller struct {
	remote *Client
	local  LocalSource
	topK   int
}

// NewRecaller creates a recaller. remote and local may each be nil.
func NewRecaller(remote *Client, local LocalSource, topK int) *Recaller {
	return &Recaller{remote: remote, local: local, topK: topK}
}

// Recall builds the recall query from the trigger context and returns the
// fused top-k snippets. Failures on either source degrade to fewer snippets.
func (r *Recaller) Recall(ctx context.Context, sample models.RawSample, mood models.Mood) []Snippet {
	if r == nil || (r.remote == nil && r.local == nil) {
		return nil
	}

	var remote, local []Snippet
	if r.remote != nil {
		remote = r.remote.Search(ctx, RecallQuery(sample, mood), r.topK)
	}
	if r.local != nil {
		var err error
		local, err = r.local.RecentSnippets(ctx, r.topK)
		if err != nil {
			log.Warn().Err(err).Msg("Local history recall failed")
			local = nil
		}
	}

	return Fuse(r.topK, remote, local)
}

// RecallQuery renders the current state the same way the backend embeds
// stored memories, so similarity search compares like with like. The app name
// is scrubbed like every other field that leaves the machine.
func RecallQuery(sample models.RawSample, mood models.Mood) string {
	battery := "N/A"
	if sample.BatteryFraction != nil {
		battery = fmt.Sprintf("%d%%", int(sample.BatteryPercent()))
	}
	return fmt.Sprintf(
		"CPU load: %d%%, RAM: %d%%, Battery: %s, Active app: %s, Time: %d:%02d, Mood: %s",
		int(sample.CPUFraction*100), int(sample.MemFraction*100), battery,
		privacy.Clean(sample.AppName), sample.At.Hour(), sample.At.Minute(), mood,
	)
}
