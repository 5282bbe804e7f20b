package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/engine"
	"github.com/chaiso-krit/LLM-Pokemon-Red/internal/memory"
)

// Wire message types the emulator sends.
const (
	msgReady               = "ready"
	msgScreenshot          = "screenshot"
	msgScreenshotWithState = "screenshot_with_state"
	msgMemoryData          = "memory_data"
)

// requestScreenshot is the command asking the emulator for a fresh frame.
const requestScreenshot = "request_screenshot\n"

// rerequestDelay spaces out follow-up screenshot requests when a decision
// produced no button, so the emulator is not flooded.
const rerequestDelay = 500 * time.Millisecond

// readPollInterval bounds each blocking read so the session notices shutdown.
const readPollInterval = 1 * time.Second

// Session handles the line protocol for one emulator connection.
type Session struct {
	conn   net.Conn
	engine *engine.Engine
	logger *zap.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, eng *engine.Engine, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		conn:   conn,
		engine: eng,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run reads emulator messages until the connection drops or ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()
	s.logger.Info("emulator connected", zap.String("remote", s.conn.RemoteAddr().String()))

	reader := bufio.NewReader(s.conn)
	var pending strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		line, err := reader.ReadString('\n')
		// Keep any partial line read before a deadline fired.
		pending.WriteString(line)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Info("emulator disconnected", zap.String("remote", s.conn.RemoteAddr().String()))
				return nil
			}
			return fmt.Errorf("connection read failed: %w", err)
		}

		message := strings.TrimSpace(pending.String())
		pending.Reset()
		if err := s.handleMessage(ctx, message); err != nil {
			return err
		}
	}
}

// handleMessage dispatches one wire message. Unknown types are ignored.
func (s *Session) handleMessage(ctx context.Context, message string) error {
	if message == "" {
		return nil
	}
	parts := strings.Split(message, "||")
	msgType := parts[0]
	content := parts[1:]

	switch msgType {
	case msgReady:
		return s.handleReady(ctx)
	case msgScreenshot:
		if len(content) < 1 {
			s.logger.Warn("screenshot message without a path")
			return nil
		}
		return s.handleScreenshot(ctx, content[0], false)
	case msgScreenshotWithState:
		return s.handleScreenshotWithState(ctx, content)
	case msgMemoryData:
		if len(content) < 1 {
			return nil
		}
		s.handleMemoryData(content[0])
		return nil
	default:
		s.logger.Debug("ignoring unknown message type", zap.String("type", msgType))
		return nil
	}
}

// handleReady waits out the cooldown, then asks for a screenshot unless a
// decision is already running.
func (s *Session) handleReady(ctx context.Context) error {
	s.logger.Debug("emulator is ready for next command")

	if wait := s.engine.CooldownRemaining(); wait > 0 {
		s.logger.Debug("waiting for cooldown", zap.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return nil
		}
	}

	if s.engine.Busy() {
		s.logger.Debug("decision in flight, skipping screenshot request")
		return nil
	}
	return s.send(requestScreenshot)
}

// handleScreenshot runs a decision for the given path and replies with the
// button code if one was chosen. withState controls the no-button follow-up:
// the telemetry variant re-requests a frame after a short delay.
func (s *Session) handleScreenshot(ctx context.Context, path string, withState bool) error {
	if _, err := os.Stat(path); err != nil {
		s.logger.Error("screenshot file not found", zap.String("path", path))
		return nil
	}

	decision, err := s.engine.Decide(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDecisionInFlight):
			s.logger.Debug("already processing a decision, skipping")
		case errors.Is(err, engine.ErrCooldownActive):
			s.logger.Debug("cooldown active, dropping screenshot")
		case errors.Is(err, engine.ErrScreenshotMissing):
			s.logger.Error("screenshot vanished before processing", zap.String("path", path))
		default:
			s.logger.Error("decision failed", zap.Error(err))
		}
		return nil
	}

	if decision.Button != nil {
		code, ok := decision.Button.Code()
		if !ok {
			s.logger.Error("decision produced unmapped button", zap.String("button", string(*decision.Button)))
			return nil
		}
		s.logger.Debug("sending button code to emulator", zap.Int("code", code))
		return s.send(strconv.Itoa(code) + "\n")
	}

	s.logger.Warn("no button press in decision - waiting for next screenshot")
	if withState {
		if err := s.sleep(ctx, rerequestDelay); err != nil {
			return nil
		}
		return s.send(requestScreenshot)
	}
	return nil
}

// handleScreenshotWithState parses the telemetry fields, updates the engine,
// and runs the decision.
func (s *Session) handleScreenshotWithState(ctx context.Context, content []string) error {
	if len(content) < 5 {
		s.logger.Warn("screenshot_with_state message too short", zap.Int("fields", len(content)))
		return nil
	}

	pos, err := parseTelemetry(content[1], content[2], content[3], content[4])
	if err != nil {
		s.logger.Warn("malformed telemetry in screenshot_with_state", zap.Error(err))
	} else {
		s.engine.SetTelemetry(pos)
		s.logger.Debug("game state updated",
			zap.String("direction", pos.Direction),
			zap.Int("x", pos.X), zap.Int("y", pos.Y),
			zap.Int("map_id", pos.MapID))
	}

	return s.handleScreenshot(ctx, content[0], true)
}

// handleMemoryData updates telemetry from a standalone state message. The
// payload is the emulator's JSON state object.
func (s *Session) handleMemoryData(payload string) {
	var state struct {
		Direction struct {
			Text string `json:"text"`
		} `json:"direction"`
		Position struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"position"`
		MapID int `json:"mapId"`
	}
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		s.logger.Warn("malformed memory_data payload", zap.Error(err))
		return
	}
	s.engine.SetTelemetry(memory.Position{
		Direction: strings.ToUpper(strings.TrimSpace(state.Direction.Text)),
		X:         state.Position.X,
		Y:         state.Position.Y,
		MapID:     state.MapID,
	})
}

func parseTelemetry(direction, xs, ys, mapIDs string) (memory.Position, error) {
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return memory.Position{}, fmt.Errorf("bad x coordinate %q: %w", xs, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return memory.Position{}, fmt.Errorf("bad y coordinate %q: %w", ys, err)
	}
	mapID, err := strconv.Atoi(strings.TrimSpace(mapIDs))
	if err != nil {
		return memory.Position{}, fmt.Errorf("bad map id %q: %w", mapIDs, err)
	}
	return memory.Position{
		Direction: strings.ToUpper(strings.TrimSpace(direction)),
		X:         x,
		Y:         y,
		MapID:     mapID,
	}, nil
}

func (s *Session) send(payload string) error {
	if _, err := s.conn.Write([]byte(payload)); err != nil {
		return fmt.Errorf("connection write failed: %w", err)
	}
	return nil
}
