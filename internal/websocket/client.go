package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

// Client is one browser connection.
type Client struct {
	conn    *websocket.Conn
	target  Target
	send    chan interface{}
	limiter *rate.Limiter
	logger  logging.Logger
}

// run pumps session events out and commands in until the connection ends or
// ctx is cancelled.
func (c *Client) run(ctx context.Context, events <-chan editor.Event) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		c.writePump(ctx, events)
	}()

	c.readPump(ctx)
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn(ctx, nil, "WebSocket message rate limit exceeded")
			_ = c.conn.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}

		cmd, err := decodeCommand(data)
		if err == nil {
			err = c.dispatch(ctx, cmd)
		}
		if err != nil {
			c.queue(ctx, errorReply(c.target.ID(), err))
		}
	}
}

func (c *Client) writePump(ctx context.Context, events <-chan editor.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = c.conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := c.write(ctx, ev); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug(ctx, "WebSocket ping failed", "error", err.Error())
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, v interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := wsjson.Write(writeCtx, c.conn, v); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
		}
		return err
	}

	return nil
}

// queue hands a direct reply to the write pump.
func (c *Client) queue(ctx context.Context, v interface{}) {
	select {
	case c.send <- v:
	case <-ctx.Done():
	default:
		c.logger.Debug(ctx, "WebSocket reply dropped, client too slow")
	}
}

func (c *Client) dispatch(ctx context.Context, cmd Command) error {
	t := c.target

	switch cmd.Type {
	case CommandPing:
		c.queue(ctx, reply(t.ID(), ReplyPong, nil))
		return nil
	case CommandFrameMessage:
		if cmd.Envelope == nil {
			return missing("envelope")
		}
		if !t.HandleFrameMessage(ctx, *cmd.Envelope) {
			c.logger.Debug(ctx, "Frame message ignored", "origin", cmd.Envelope.Origin, "type", cmd.Envelope.Data.Type)
		}
		return nil
	case CommandFrameOffset:
		if cmd.Offset == nil {
			return missing("offset")
		}
		t.SetFrameOffset(*cmd.Offset)
		return nil
	case CommandCommitText:
		return t.CommitText(ctx, cmd.Text)
	case CommandCommitClasses:
		return t.CommitClasses(ctx, cmd.Classes)
	case CommandCommitStyle:
		if cmd.Property == "" {
			return missing("property")
		}
		return t.CommitStyle(ctx, cmd.Property, cmd.Value)
	case CommandEscape:
		t.EscapeEditor()
		return nil
	case CommandClose:
		t.CloseEditor()
		return nil
	default:
		return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "unknown command: "+string(cmd.Type))
	}
}

func missing(field string) error {
	return apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "command is missing "+field)
}
