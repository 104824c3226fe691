package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

type fakeState struct {
	snapshot StateSnapshot
	err      error
}

func (f *fakeState) Snapshot(context.Context) (StateSnapshot, error) {
	return f.snapshot, f.err
}

type fakePetter struct {
	reaction *models.Reaction
	err      error
	calls    int
}

func (f *fakePetter) Pet(context.Context) (*models.Reaction, error) {
	f.calls++
	return f.reaction, f.err
}

type ServerSuite struct {
	suite.Suite

	state       *fakeState
	petter      *fakePetter
	broadcaster *Broadcaster
	srv         *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.state = &fakeState{
		snapshot: StateSnapshot{
			Mood:    models.MoodJudgy,
			Emoji:   models.MoodEmoji[models.MoodJudgy],
			Since:   time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC),
			Message: models.DefaultMessages[models.MoodJudgy],
			Recent: []RecentEntry{
				{Timestamp: "2026-03-14T21:59:00Z", Mood: "chill", Message: "fine, whatever"},
			},
		},
	}
	s.petter = &fakePetter{
		reaction: &models.Reaction{
			Message:    "...don't stop.",
			Expression: models.ExpressionDelighted,
			Placement:  models.PlacementCenterWindow,
			Mood:       models.MoodPleased,
		},
	}
	s.broadcaster = NewBroadcaster()
	s.srv = New("127.0.0.1:0", s.state, s.petter, s.broadcaster)
}

func (s *ServerSuite) TestHealth() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ok")
}

func (s *ServerSuite) TestState() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	s.Require().Equal(http.StatusOK, rec.Code)

	var snapshot StateSnapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snapshot))
	s.Equal(models.MoodJudgy, snapshot.Mood)
	s.Equal(models.DefaultMessages[models.MoodJudgy], snapshot.Message)
	s.Len(snapshot.Recent, 1)
	s.Equal("fine, whatever", snapshot.Recent[0].Message)
}

func (s *ServerSuite) TestState_SourceError() {
	s.state.err = errors.New("boom")

	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *ServerSuite) TestPet() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pet", nil))

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.petter.calls)

	var reaction models.Reaction
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &reaction))
	s.Equal("...don't stop.", reaction.Message)
	s.Equal(models.MoodPleased, reaction.Mood)
}

func (s *ServerSuite) TestPet_FailureIsBadGateway() {
	s.petter.err = errors.New("model unreachable")
	s.petter.reaction = nil

	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pet", nil))

	s.Equal(http.StatusBadGateway, rec.Code)
}

func (s *ServerSuite) TestPet_WrongMethod() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pet", nil))

	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *ServerSuite) TestStream_SendsInitialStateAndBroadcast() {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.srv.Handler().ServeHTTP(rec, req)
	}()

	// Wait for the client to register and receive the initial state, then
	// broadcast one reaction.
	s.Require().Eventually(func() bool {
		return s.broadcaster.ClientCount() == 1 && strings.Contains(rec.Body.String(), "event: state")
	}, time.Second, 5*time.Millisecond)

	s.broadcaster.Broadcast("reaction", map[string]string{"message": "I saw that."})
	cancel()
	<-done

	body := rec.Body.String()
	s.Contains(body, "event: state")
	s.Contains(body, `"mood":"judgy"`)
	s.Contains(body, "event: reaction")
	s.Contains(body, "I saw that.")
	s.Equal("text/event-stream", rec.Header().Get("Content-Type"))
	s.Equal(0, s.broadcaster.ClientCount())
}

func TestBroadcast_NoClientsIsNoop(t *testing.T) {
	b := NewBroadcaster()
	b.Broadcast("reaction", map[string]string{"message": "into the void"})
	if b.ClientCount() != 0 {
		t.Fatal("expected no clients")
	}
}

func TestBroadcast_MessageFormat(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()
	client, err := b.addClient(rec)
	if err != nil {
		t.Fatal(err)
	}
	defer b.removeClient(client)

	b.Broadcast("state", map[string]int{"n": 1})

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: state\ndata: ") {
		t.Fatalf("unexpected SSE framing: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("SSE message must end with a blank line: %q", body)
	}
}
