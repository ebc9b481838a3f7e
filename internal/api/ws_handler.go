package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"snapfixer/internal/api/middleware"
	"snapfixer/internal/database"
	"snapfixer/internal/jobs"
	"snapfixer/internal/worker"
)

// StatusSubscription is an active subscription; *redis.PubSub satisfies it.
type StatusSubscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// StatusSubscriber returns a subscription that is already confirmed by the server, so
// no message published after it returns can be missed.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, channel string) (StatusSubscription, error)
}

// StatusReader reads a job without consuming it; *jobs.Service satisfies it.
type StatusReader interface {
	Status(ctx context.Context, id string) (jobs.Outcome, error)
}

// WsHandler 负责把任务状态从 Redis Pub/Sub 转发给 WebSocket 客户端。
type WsHandler struct {
	subscriber     StatusSubscriber
	statuses       StatusReader
	upgrader       websocket.Upgrader
	allowedOrigins []string
	pingInterval   time.Duration
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(subscriber StatusSubscriber, statuses StatusReader, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		subscriber:     subscriber,
		statuses:       statuses,
		allowedOrigins: allowedOrigins,
		pingInterval:   30 * time.Second,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// HandleConnection upgrades the request and streams status messages for one job until
// it reaches a terminal status or the client disconnects.
func (h *WsHandler) HandleConnection(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("id"))
	log := middleware.LoggerFromContext(c).With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("job_id", jobID),
	)

	if _, err := h.statuses.Status(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			Reject(c, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		log.Error("read job status failed", slog.Any("error", err))
		Internal(c, "failed to load photo")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go h.readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, jobID, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

// readLoop only detects client disconnects; inbound messages are ignored.
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case <-ctx.Done():
			default:
				errCh <- fmt.Errorf("read message: %w", err)
			}
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	jobID string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := worker.NotifyChannel(jobID)
	sub, err := h.subscriber.Subscribe(ctx, channel)
	if err != nil {
		errCh <- fmt.Errorf("subscribe %s: %w", channel, err)
		cancel()
		return
	}
	defer sub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	// 订阅生效后再读一次当前状态：任务可能在客户端连上之前就已结束。
	done, err := h.sendSnapshot(ctx, conn, jobID)
	if err != nil || done {
		errCh <- err
		cancel()
		return
	}

	ch := sub.Channel()
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
			if isTerminalStatus(msg.Payload) {
				writeClose(conn, websocket.CloseNormalClosure, "done")
				errCh <- nil
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}

// sendSnapshot writes the job's current status and reports whether the stream is over.
func (h *WsHandler) sendSnapshot(ctx context.Context, conn *websocket.Conn, jobID string) (bool, error) {
	out, err := h.statuses.Status(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeClose(conn, websocket.CloseNormalClosure, "gone")
		return true, nil
	}
	if err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, "status unavailable")
		return true, fmt.Errorf("read job status: %w", err)
	}

	payload, err := json.Marshal(worker.PhotoStatusMessage{
		Status:        string(out.Status),
		JobID:         out.JobID,
		CorrelationID: out.CorrelationID,
		ErrorCode:     out.ErrorCode,
		ErrorMessage:  out.ErrorMessage,
	})
	if err != nil {
		return true, fmt.Errorf("marshal status: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return true, fmt.Errorf("write message: %w", err)
	}
	if out.Status.Terminal() {
		writeClose(conn, websocket.CloseNormalClosure, "done")
		return true, nil
	}
	return false, nil
}

func isTerminalStatus(payload string) bool {
	var msg worker.PhotoStatusMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return false
	}
	return database.JobStatus(msg.Status).Terminal()
}
