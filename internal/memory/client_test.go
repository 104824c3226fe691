package memory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) TestStore_PostsRecordWithUserID() {
	var got storeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/v1/memories", r.URL.Path)
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(storeResponse{ID: "mem-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-42", time.Second)
	ok := c.Store(context.Background(), MetricsRecord{CPUPercent: 80, ActiveApp: "Editor"},
		ReactionRecord{Message: "I can't breathe.", Mood: "overheated"})

	s.True(ok)
	s.Equal("user-42", got.UserID)
	s.Equal(80, got.Metrics.CPUPercent)
	s.Equal("overheated", got.Reaction.Mood)
	s.NotEmpty(got.Timestamp)
}

func (s *ClientSuite) TestStore_BackendError_ReturnsFalse() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "u", time.Second)
	s.False(c.Store(context.Background(), MetricsRecord{}, ReactionRecord{}))
}

func (s *ClientSuite) TestStore_UnreachableBackend_ReturnsFalse() {
	c := NewClient("http://127.0.0.1:1", "u", 200*time.Millisecond)
	s.False(c.Store(context.Background(), MetricsRecord{}, ReactionRecord{}))
}

func (s *ClientSuite) TestSearch_ReturnsSnippets() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/v1/memories/search", r.URL.Path)
		var req searchRequest
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal(3, req.TopK)

		w.Write([]byte(`{"memories":[
			{"timestamp":"2026-08-29T10:00:00Z","reaction":{"message":"again?","mood":"judgy"},"score":0.9},
			{"timestamp":"2026-08-28T22:00:00Z","reaction":{"message":"zzz","mood":"nocturnal"},"score":0.4}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "u", time.Second)
	got := c.Search(context.Background(), "query", 3)

	s.Require().Len(got, 2)
	s.Equal("again?", got[0].Message)
	s.Equal("judgy", got[0].Mood)
	s.Equal(0.9, got[0].Score)
}

func (s *ClientSuite) TestSearch_Failure_ReturnsEmpty() {
	c := NewClient("http://127.0.0.1:1", "u", 200*time.Millisecond)
	s.Empty(c.Search(context.Background(), "query", 3))
}

type RankSuite struct {
	suite.Suite
}

func TestRankSuite(t *testing.T) {
	suite.Run(t, new(RankSuite))
}

func sn(ts, msg string) Snippet { return Snippet{Timestamp: ts, Message: msg} }

func (s *RankSuite) TestFuse_EmptyInputs() {
	s.Empty(Fuse(3))
	s.Empty(Fuse(3, nil, nil))
}

func (s *RankSuite) TestFuse_RemoteListCarriesDoubleWeight() {
	remote := []Snippet{sn("t1", "remote-top")}
	local := []Snippet{sn("t2", "local-top")}

	got := Fuse(3, remote, local)
	s.Require().Len(got, 2)
	s.Equal("remote-top", got[0].Message)
}

func (s *RankSuite) TestFuse_DuplicateAccumulatesAcrossLists() {
	shared := sn("t1", "shared")
	remote := []Snippet{sn("t0", "remote-only"), shared}
	local := []Snippet{shared}

	got := Fuse(3, remote, local)
	s.Require().Len(got, 2)
	s.Equal("shared", got[0].Message, "a memory in both lists outranks a single-list top hit")
}

func (s *RankSuite) TestFuse_LimitTruncates() {
	remote := []Snippet{sn("a", "1"), sn("b", "2"), sn("c", "3"), sn("d", "4")}
	s.Len(Fuse(2, remote), 2)
}

type fakeLocal struct {
	snippets []Snippet
	err      error
}

func (f *fakeLocal) RecentSnippets(ctx context.Context, n int) ([]Snippet, error) {
	return f.snippets, f.err
}

func (s *RankSuite) TestRecaller_LocalOnly() {
	local := &fakeLocal{snippets: []Snippet{sn("t1", "local")}}
	r := NewRecaller(nil, local, 3)

	got := r.Recall(context.Background(), models.RawSample{At: time.Now()}, models.MoodChill)
	s.Require().Len(got, 1)
	assert.Equal(s.T(), "local", got[0].Message)
}

func (s *RankSuite) TestRecaller_LocalFailure_Degrades() {
	local := &fakeLocal{err: errors.New("db locked")}
	r := NewRecaller(nil, local, 3)

	s.Empty(r.Recall(context.Background(), models.RawSample{At: time.Now()}, models.MoodChill))
}

func (s *RankSuite) TestRecaller_NoSources_ReturnsNil() {
	r := NewRecaller(nil, nil, 3)
	s.Nil(r.Recall(context.Background(), models.RawSample{At: time.Now()}, models.MoodChill))
}

func (s *RankSuite) TestRecallQuery_RendersState() {
	frac := 0.5
	sample := models.RawSample{
		At:              time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
		CPUFraction:     0.82,
		MemFraction:     0.6,
		BatteryFraction: &frac,
		AppName:         "Editor",
	}
	q := RecallQuery(sample, models.MoodJudgy)
	s.Contains(q, "CPU load: 82%")
	s.Contains(q, "Battery: 50%")
	s.Contains(q, "Active app: Editor")
	s.Contains(q, "Time: 14:05")
	s.Contains(q, "Mood: judgy")
}

func (s *RankSuite) TestRecallQuery_ScrubsAppName() {
	sample := models.RawSample{
		At:      time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
		AppName: "Mail - alice@example.com",
	}
	q := RecallQuery(sample, models.MoodChill)
	s.Contains(q, "Active app: Mail - [email]")
	s.NotContains(q, "alice@example.com")
}
