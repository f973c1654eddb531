package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/eel-brah/kokorodoki/internal/audio"
	"github.com/eel-brah/kokorodoki/internal/player"
	"github.com/eel-brah/kokorodoki/internal/protocol"
	"github.com/eel-brah/kokorodoki/internal/synth"
)

type fakeHistory struct {
	mu      sync.Mutex
	records []string
	cleared bool
}

func (h *fakeHistory) Record(_ context.Context, text, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, text)
	return nil
}

func (h *fakeHistory) Clear(context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = true
	n := int64(len(h.records))
	h.records = nil
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startTestServer(t *testing.T, hist History) (*Server, string) {
	t.Helper()
	sink := audio.NewMockSink()
	sink.ClipDelay = 5 * time.Millisecond
	ctrl := player.NewController(context.Background(), synth.NewMockSynth(24000), sink,
		player.Options{Lookahead: 2, Speed: 1.0}, testLogger())
	t.Cleanup(ctrl.Close)

	srv := New(ctrl, hist, testLogger())
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, srv.Addr().String()
}

func roundTrip(t *testing.T, addr string, payload []byte) protocol.Reply {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	var rep protocol.Reply
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return rep
}

func send(t *testing.T, addr string, cmd protocol.Command) protocol.Reply {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return roundTrip(t, addr, data)
}

func TestStatusRoundTrip(t *testing.T) {
	_, addr := startTestServer(t, nil)

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbStatus})
	if !rep.OK || rep.Status == nil {
		t.Fatalf("unexpected reply: %+v", rep)
	}
	if rep.Status.Phase != "idle" {
		t.Fatalf("expected idle, got %s", rep.Status.Phase)
	}
}

func TestMalformedCommand(t *testing.T) {
	_, addr := startTestServer(t, nil)

	rep := roundTrip(t, addr, []byte("this is not json\n"))
	if rep.OK || rep.Message != "invalid command" {
		t.Fatalf("expected invalid command reply, got %+v", rep)
	}
}

func TestUnknownVerb(t *testing.T) {
	_, addr := startTestServer(t, nil)

	rep := send(t, addr, protocol.Command{Verb: "jump"})
	if rep.OK {
		t.Fatalf("expected failure for unknown verb, got %+v", rep)
	}
}

func TestSpeakRecordsHistory(t *testing.T) {
	hist := &fakeHistory{}
	_, addr := startTestServer(t, hist)

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbSpeak, Text: "Hello. World."})
	if !rep.OK {
		t.Fatalf("speak failed: %+v", rep)
	}

	hist.mu.Lock()
	n := len(hist.records)
	hist.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 history record, got %d", n)
	}

	rep = send(t, addr, protocol.Command{Verb: protocol.VerbClearHistory})
	if !rep.OK {
		t.Fatalf("clear-history failed: %+v", rep)
	}
	hist.mu.Lock()
	cleared := hist.cleared
	hist.mu.Unlock()
	if !cleared {
		t.Fatal("history not cleared")
	}
}

func TestSpeakEmptyPayload(t *testing.T) {
	_, addr := startTestServer(t, nil)

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbSpeak, Text: "   "})
	if rep.OK {
		t.Fatalf("expected failure for empty payload, got %+v", rep)
	}
}

func TestInvalidTransitionIsReply(t *testing.T) {
	_, addr := startTestServer(t, nil)

	// Pause with nothing loaded must come back as a failed reply, not a
	// dropped connection.
	rep := send(t, addr, protocol.Command{Verb: protocol.VerbPause})
	if rep.OK || rep.Message == "" {
		t.Fatalf("expected explanatory failure, got %+v", rep)
	}
}

func TestListVerbs(t *testing.T) {
	_, addr := startTestServer(t, nil)

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbListLanguages})
	if !rep.OK || len(rep.Items) == 0 {
		t.Fatalf("expected language list, got %+v", rep)
	}

	rep = send(t, addr, protocol.Command{Verb: protocol.VerbListVoices, Language: "a"})
	if !rep.OK || len(rep.Items) == 0 {
		t.Fatalf("expected voice list, got %+v", rep)
	}
	for _, item := range rep.Items {
		if item.ID[0] != 'a' {
			t.Fatalf("voice %q does not belong to language a", item.ID)
		}
	}

	rep = send(t, addr, protocol.Command{Verb: protocol.VerbListVoices, Language: "zz"})
	if rep.OK {
		t.Fatalf("expected failure for unknown language, got %+v", rep)
	}
}

func TestExitTriggersCallback(t *testing.T) {
	srv, addr := startTestServer(t, nil)

	done := make(chan struct{})
	srv.OnExit = func() { close(done) }

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbExit})
	if !rep.OK {
		t.Fatalf("exit failed: %+v", rep)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exit callback not invoked")
	}
}

func TestNextMovesStatusCursor(t *testing.T) {
	// Slow synthesis keeps the cursor where commands put it.
	syn := synth.NewMockSynth(24000)
	syn.Latency = 500 * time.Millisecond
	ctrl := player.NewController(context.Background(), syn, audio.NewMockSink(),
		player.Options{Lookahead: 2, Speed: 1.0}, testLogger())
	t.Cleanup(ctrl.Close)

	srv := New(ctrl, nil, testLogger())
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	addr := srv.Addr().String()

	rep := send(t, addr, protocol.Command{Verb: protocol.VerbSpeak, Text: "Hello. World."})
	if !rep.OK {
		t.Fatalf("speak failed: %+v", rep)
	}
	rep = send(t, addr, protocol.Command{Verb: protocol.VerbNext})
	if !rep.OK {
		t.Fatalf("next failed: %+v", rep)
	}
	rep = send(t, addr, protocol.Command{Verb: protocol.VerbStatus})
	if !rep.OK || rep.Status == nil {
		t.Fatalf("status failed: %+v", rep)
	}
	if rep.Status.Cursor != 1 || rep.Status.Total != 2 {
		t.Fatalf("expected cursor 1 of 2, got %d of %d", rep.Status.Cursor, rep.Status.Total)
	}
	if rep.Status.Utterance != "World." {
		t.Fatalf("expected utterance %q, got %q", "World.", rep.Status.Utterance)
	}
}

func TestOneCommandPerConnection(t *testing.T) {
	_, addr := startTestServer(t, nil)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first, _ := json.Marshal(protocol.Command{Verb: protocol.VerbStatus})
	second, _ := json.Marshal(protocol.Command{Verb: protocol.VerbStop})
	if _, err := conn.Write(append(first, second...)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var rep protocol.Reply
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !rep.OK || rep.Status == nil {
		t.Fatalf("unexpected first reply: %+v", rep)
	}

	// The daemon closes after one reply; the second command is ignored.
	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if n, err := conn.Read(buf); err == nil && n > 0 {
		var extra protocol.Reply
		if json.Unmarshal(buf[:n], &extra) == nil && extra.Status == nil {
			t.Fatalf("unexpected second reply: %+v", extra)
		}
	}
}
