package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"replay/internal/catalog"
	"replay/internal/daemon"
	"replay/internal/logging"
	"replay/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Replay", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun replay stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status(s.ctx)
	resp.Running = st.Running
	resp.PID = st.PID
	resp.Version = st.Version
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	resp.LockPath = st.LockPath
	resp.CatalogPath = st.CatalogPath
	resp.LogPath = st.LogPath
	resp.Capture = st.Capture
	resp.Buffer = st.Buffer
	resp.Disk = st.Disk
	resp.Save = st.Save
	resp.LastSave = st.LastSave
	resp.HotkeyDevices = append(resp.HotkeyDevices, st.HotkeyDevices...)
	resp.Notifications = st.Notifications
	return nil
}

func (s *service) Save(req SaveRequest, resp *SaveResponse) error {
	s.log().Debug("save requested",
		logging.Int("seconds", req.Seconds),
		logging.String("title", req.Title))
	clip, err := s.daemon.Save(s.ctx, req.Seconds, req.Title)
	if err != nil {
		return err
	}
	resp.RequestID = clip.RequestID
	resp.ClipID = clip.ID
	resp.Seconds = clip.RequestedSeconds
	resp.Title = clip.Title
	s.log().Info("save queued via IPC",
		logging.String(logging.FieldEventType, "save_queued"),
		logging.String(logging.FieldRequestID, clip.RequestID))
	return nil
}

func (s *service) PauseCapture(_ PauseCaptureRequest, resp *PauseCaptureResponse) error {
	s.log().Debug("capture pause requested")
	if err := s.daemon.PauseCapture(); err != nil {
		return err
	}
	resp.Phase = string(s.daemon.Status(s.ctx).Capture.Phase)
	return nil
}

func (s *service) ResumeCapture(_ ResumeCaptureRequest, resp *ResumeCaptureResponse) error {
	s.log().Debug("capture resume requested")
	if err := s.daemon.ResumeCapture(); err != nil {
		return err
	}
	resp.Phase = string(s.daemon.Status(s.ctx).Capture.Phase)
	return nil
}

func (s *service) RestartCapture(_ RestartCaptureRequest, resp *RestartCaptureResponse) error {
	s.log().Debug("capture restart requested")
	if err := s.daemon.RestartCapture(); err != nil {
		return err
	}
	resp.Phase = string(s.daemon.Status(s.ctx).Capture.Phase)
	return nil
}

func (s *service) Clips(req ClipsRequest, resp *ClipsResponse) error {
	clips, err := s.daemon.ListClips(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Clips = make([]catalog.Clip, 0, len(clips))
	for _, clip := range clips {
		if clip != nil {
			resp.Clips = append(resp.Clips, *clip)
		}
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Cursor = 0
		return nil
	}
	var wait time.Duration
	if req.Follow {
		wait = time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
	}
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailRequest{
		Cursor: req.Cursor,
		Lines:  req.Lines,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Cursor = result.Cursor
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Cursor = result.Cursor
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}
