// Package chat connects to a Twitch IRC channel and keeps a bounded ring of
// recent viewer messages for prompt inclusion.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// privmsgPattern extracts the sender and text from a channel message.
var privmsgPattern = regexp.MustCompile(`:(\w+)!.*@.*\.tmi\.twitch\.tv PRIVMSG #\w+ :(.*)`)

// reconnectDelay spaces out reconnection attempts.
const reconnectDelay = 5 * time.Second

// Message is one chat line from a viewer.
type Message struct {
	Time time.Time
	User string
	Text string
}

// Client holds the IRC connection and the message ring.
type Client struct {
	server   string
	nickname string
	token    string
	channel  string
	capacity int
	logger   *zap.Logger

	dial func(ctx context.Context) (net.Conn, error)

	mu       sync.Mutex
	messages []Message
}

// NewClient creates a chat client. The channel name may omit the leading '#'.
func NewClient(server string, port int, nickname, token, channel string, capacity int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	if capacity <= 0 {
		capacity = 50
	}
	addr := fmt.Sprintf("%s:%d", server, port)
	return &Client{
		server:   addr,
		nickname: nickname,
		token:    token,
		channel:  channel,
		capacity: capacity,
		logger:   logger,
		dial: func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Run keeps the client connected until ctx is canceled, reconnecting after
// errors.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := c.receive(ctx); err != nil {
			c.logger.Warn("chat connection lost, reconnecting", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// receive connects, authenticates, and processes lines until the connection
// drops.
func (c *Client) receive(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.server, err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so the blocked read returns.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	token := c.token
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	for _, line := range []string{
		"PASS " + token,
		"NICK " + c.nickname,
		"JOIN " + c.channel,
	} {
		if _, err := fmt.Fprintf(conn, "%s\r\n", line); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	c.logger.Info("connected to chat", zap.String("channel", c.channel))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		c.processLine(conn, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) processLine(conn net.Conn, line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "PING") {
		if _, err := fmt.Fprint(conn, "PONG\r\n"); err != nil {
			c.logger.Warn("failed to answer PING", zap.Error(err))
		}
		return
	}

	match := privmsgPattern.FindStringSubmatch(line)
	if match == nil {
		return
	}
	msg := Message{Time: time.Now(), User: match[1], Text: match[2]}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.capacity {
		c.messages = c.messages[len(c.messages)-c.capacity:]
	}
	c.mu.Unlock()

	c.logger.Debug("chat message",
		zap.String("user", msg.User),
		zap.String("text", msg.Text))
}

// Recent returns up to n of the latest messages, oldest first.
func (c *Client) Recent(n int) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || len(c.messages) == 0 {
		return nil
	}
	start := len(c.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

// Summary formats the latest n messages for prompt inclusion. Empty when
// there is nothing to report.
func (c *Client) Summary(n int) string {
	messages := c.Recent(n)
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Time.Format("15:04:05"), m.User, m.Text)
	}
	return b.String()
}
