package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/autovoyce/autovoyce/internal/events"
)

type fakeFetcher struct {
	mu         sync.Mutex
	transcript map[string]string
	calls      []string
}

func (f *fakeFetcher) Fetch(_ context.Context, videoID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, videoID)
	f.mu.Unlock()
	text, ok := f.transcript[videoID]
	if !ok {
		return "", fmt.Errorf("no transcript available for video %s", videoID)
	}
	return text, nil
}

type fakeUploader struct {
	mu       sync.Mutex
	chunks   int
	err      error
	gotNS    string
	gotText  string
	uploaded int
}

func (u *fakeUploader) Upload(_ context.Context, namespace, text string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gotNS = namespace
	u.gotText = text
	if u.err != nil {
		return 0, u.err
	}
	u.uploaded++
	return u.chunks, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	live    map[string]string
	touched []string
}

func (s *fakeSessions) Namespace(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.live[sessionID]
	return ns, ok
}

func (s *fakeSessions) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, sessionID)
}

type RunnerSuite struct {
	suite.Suite

	fetcher  *fakeFetcher
	uploader *fakeUploader
	sessions *fakeSessions
	log      *events.Log
	runner   *Runner
}

func (s *RunnerSuite) SetupTest() {
	s.fetcher = &fakeFetcher{transcript: map[string]string{}}
	s.uploader = &fakeUploader{chunks: 3}
	s.sessions = &fakeSessions{live: map[string]string{"sess-1": "session_abcd1234"}}
	s.log = events.NewLog(100)
	s.runner = NewRunner(s.fetcher, s.uploader, s.sessions, s.log)
}

func (s *RunnerSuite) run(videoIDs ...string) *State {
	state := &State{
		VideoIDs:  videoIDs,
		Namespace: "session_abcd1234",
		SessionID: "sess-1",
	}
	s.runner.Run(context.Background(), state)
	return state
}

func (s *RunnerSuite) eventTypes() []string {
	var types []string
	for _, ev := range s.log.Events("sess-1") {
		types = append(types, ev.Type)
	}
	return types
}

func (s *RunnerSuite) TestHappyPath() {
	s.fetcher.transcript["abc123"] = "hello world"
	state := s.run("abc123")

	s.Contains(state.Transcript, "Transcript for Video ID-abc123: \nhello world")
	s.Equal("Transcript successfully uploaded to namespace 'session_abcd1234'.", state.Result)
	s.Equal("session_abcd1234", s.uploader.gotNS)
	s.Equal(state.Transcript, s.uploader.gotText)
	s.Equal([]string{"sess-1"}, s.sessions.touched)

	s.Equal([]string{
		events.TypeProcessingStarted,
		events.TypeTranscriptStarted,
		events.TypeVideoProcessing,
		events.TypeVideoProcessed,
		events.TypeTranscriptComplete,
		events.TypeUploadStarted,
		events.TypeChunksUploaded,
		events.TypeUploadComplete,
		events.TypeProcessingComplete,
	}, s.eventTypes())
}

func (s *RunnerSuite) TestFailedFetchContributesErrorBlock() {
	s.fetcher.transcript["abc123"] = "some text"
	state := s.run("abc123", "bad_id")

	s.Contains(state.Transcript, "Transcript for Video ID-abc123: \nsome text")
	s.Contains(state.Transcript, "Error for Video ID-bad_id: \n")
	// Aggregation keeps the selection order.
	s.Less(
		strings.Index(state.Transcript, "abc123"),
		strings.Index(state.Transcript, "bad_id"),
	)
	// The run continues through upload despite the per-item failure.
	s.Equal(1, s.uploader.uploaded)
	s.Contains(s.eventTypes(), events.TypeVideoError)
	s.Contains(s.eventTypes(), events.TypeUploadComplete)
}

func (s *RunnerSuite) TestFetchOrderMatchesSelectionOrder() {
	for _, id := range []string{"v1", "v2", "v3"} {
		s.fetcher.transcript[id] = "t-" + id
	}
	s.run("v3", "v1", "v2")
	s.Equal([]string{"v3", "v1", "v2"}, s.fetcher.calls)
}

func (s *RunnerSuite) TestUploadFailureLandsInResult() {
	s.fetcher.transcript["abc123"] = "text"
	s.uploader.err = errors.New("index unavailable")
	state := s.run("abc123")

	s.Equal("Error during upload: index unavailable", state.Result)
	types := s.eventTypes()
	s.Contains(types, events.TypeUploadError)
	s.NotContains(types, events.TypeUploadComplete)
	// The run still terminates normally.
	s.Equal(events.TypeProcessingComplete, types[len(types)-1])
}

func (s *RunnerSuite) TestExpiredSessionSkipsUpload() {
	s.fetcher.transcript["abc123"] = "text"
	s.sessions.live = map[string]string{}
	state := s.run("abc123")

	s.Equal(0, s.uploader.uploaded)
	s.Equal("Upload skipped: session expired during processing.", state.Result)
	s.Contains(s.eventTypes(), events.TypeUploadError)
}

func (s *RunnerSuite) TestChunkCountInEventData() {
	s.fetcher.transcript["abc123"] = "text"
	s.uploader.chunks = 7
	s.run("abc123")

	for _, ev := range s.log.Events("sess-1") {
		if ev.Type == events.TypeChunksUploaded {
			s.Equal(7, ev.Data["chunk_count"])
			s.Equal("session_abcd1234", ev.Data["namespace"])
			return
		}
	}
	s.Fail("chunks_uploaded event not emitted")
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func TestDispatcherRunsJobsInOrder(t *testing.T) {
	d := NewDispatcher(8)
	d.Start(context.Background())
	defer d.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		i := i
		ok := d.Dispatch("sess", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
		})
		require.True(t, ok)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(8)
	d.Start(context.Background())
	defer d.Stop()

	ran := make(chan struct{})
	require.True(t, d.Dispatch("sess", func(context.Context) { panic("boom") }))
	require.True(t, d.Dispatch("sess", func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(1)
	// Not started: nothing drains the queue.
	require.True(t, d.Dispatch("sess", func(context.Context) {}))
	require.False(t, d.Dispatch("sess", func(context.Context) {}))
}
