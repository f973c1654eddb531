// Package server exposes the playback controller over a local TCP socket.
// The contract is deliberately minimal: a client connects, sends one JSON
// command, receives one JSON reply, and the daemon closes the connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/eel-brah/kokorodoki/internal/player"
	"github.com/eel-brah/kokorodoki/internal/protocol"
	"github.com/eel-brah/kokorodoki/internal/segment"
	"github.com/eel-brah/kokorodoki/internal/voices"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	maxCommand   = 1 << 20
)

// History records spoken payloads. Implemented by the sqlite store; a nil
// History disables recording.
type History interface {
	Record(ctx context.Context, text, source string) error
	Clear(ctx context.Context) (int64, error)
}

// Server accepts command connections and applies them to the controller.
type Server struct {
	ctrl    *player.Controller
	history History
	logger  *slog.Logger

	// OnExit is invoked once after an exit command has been replied to.
	OnExit func()

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func New(ctrl *player.Controller, history History, logger *slog.Logger) *Server {
	return &Server{
		ctrl:    ctrl,
		history: history,
		logger:  logger.With(slog.String("component", "server")),
	}
}

// Start binds the listener and begins serving. It returns once the
// listener is accepting.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("command socket listening", slog.String("addr", ln.Addr().String()))
	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting and waits for in-flight connections.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()
	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", slog.String("error", err.Error()))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn handles exactly one command. Decoding happens before any
// controller call, so a slow or malformed client never holds playback up.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	var cmd protocol.Command
	dec := json.NewDecoder(io.LimitReader(conn, maxCommand))
	if err := dec.Decode(&cmd); err != nil {
		s.reply(conn, protocol.Reply{OK: false, Message: "invalid command"})
		return
	}

	rep, exit := s.dispatch(cmd)
	s.reply(conn, rep)

	if exit && s.OnExit != nil {
		s.OnExit()
	}
}

func (s *Server) reply(conn net.Conn, rep protocol.Reply) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := json.NewEncoder(conn).Encode(rep); err != nil {
		s.logger.Warn("reply not delivered", slog.String("error", err.Error()))
	}
}

func (s *Server) dispatch(cmd protocol.Command) (protocol.Reply, bool) {
	s.logger.Debug("command received", slog.String("verb", cmd.Verb))

	switch cmd.Verb {
	case protocol.VerbSpeak:
		return s.speak(cmd), false
	case protocol.VerbStop:
		s.ctrl.Stop()
		return ok("stopped"), false
	case protocol.VerbPause:
		return fromErr(s.ctrl.Pause(), "paused"), false
	case protocol.VerbResume:
		return fromErr(s.ctrl.Resume(), "resumed"), false
	case protocol.VerbNext:
		return fromErr(s.ctrl.Next(), "skipped forward"), false
	case protocol.VerbBack:
		return fromErr(s.ctrl.Back(), "skipped back"), false
	case protocol.VerbSetVoice:
		return fromErr(s.ctrl.SetVoice(cmd.Voice), "voice set to "+cmd.Voice), false
	case protocol.VerbSetLanguage:
		return fromErr(s.ctrl.SetLanguage(cmd.Language), "language set to "+cmd.Language), false
	case protocol.VerbSetSpeed:
		return fromErr(s.ctrl.SetSpeed(cmd.Speed), fmt.Sprintf("speed set to %.2f", cmd.Speed)), false
	case protocol.VerbStatus:
		st := s.ctrl.Status()
		return protocol.Reply{OK: true, Status: &protocol.StatusPayload{
			Phase:     st.Phase,
			Cursor:    st.Cursor,
			Total:     st.Total,
			Utterance: st.Utterance,
			Voice:     st.Voice,
			Language:  st.Language,
			Speed:     st.Speed,
		}}, false
	case protocol.VerbListLanguages:
		return listLanguages(), false
	case protocol.VerbListVoices:
		return listVoices(cmd.Language), false
	case protocol.VerbClearHistory:
		return s.clearHistory(), false
	case protocol.VerbExit:
		s.logger.Info("exit requested")
		return ok("shutting down"), true
	default:
		return protocol.Reply{OK: false, Message: fmt.Sprintf("unknown verb %q", cmd.Verb)}, false
	}
}

func (s *Server) speak(cmd protocol.Command) protocol.Reply {
	utts, source, err := segment.Prepare(cmd.Text, s.logger)
	if err != nil {
		return protocol.Reply{OK: false, Message: err.Error()}
	}
	if err := s.ctrl.Load(utts); err != nil {
		return protocol.Reply{OK: false, Message: err.Error()}
	}
	if s.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.history.Record(ctx, cmd.Text, source); err != nil {
			s.logger.Warn("history record failed", slog.String("error", err.Error()))
		}
	}
	return ok(fmt.Sprintf("speaking %d utterances", len(utts)))
}

func (s *Server) clearHistory() protocol.Reply {
	if s.history == nil {
		return protocol.Reply{OK: false, Message: "history disabled"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := s.history.Clear(ctx)
	if err != nil {
		return protocol.Reply{OK: false, Message: err.Error()}
	}
	return ok(fmt.Sprintf("cleared %d entries", n))
}

func listLanguages() protocol.Reply {
	codes := voices.LanguageCodes()
	items := make([]protocol.ListItem, 0, len(codes))
	for _, code := range codes {
		items = append(items, protocol.ListItem{ID: code, Name: voices.LanguageName(code)})
	}
	return protocol.Reply{OK: true, Items: items}
}

func listVoices(lang string) protocol.Reply {
	var names []string
	if lang != "" {
		if !voices.IsLanguage(lang) {
			return protocol.Reply{OK: false, Message: fmt.Sprintf("unknown language code %q", lang)}
		}
		names = voices.ForLanguage(lang)
	} else {
		names = voices.All()
	}
	sort.Strings(names)
	items := make([]protocol.ListItem, 0, len(names))
	for _, v := range names {
		items = append(items, protocol.ListItem{ID: v})
	}
	return protocol.Reply{OK: true, Items: items}
}

func ok(msg string) protocol.Reply {
	return protocol.Reply{OK: true, Message: msg}
}

func fromErr(err error, msg string) protocol.Reply {
	if err != nil {
		return protocol.Reply{OK: false, Message: err.Error()}
	}
	return ok(msg)
}
