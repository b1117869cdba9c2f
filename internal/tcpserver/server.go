package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/odyssia-dev/realmgate/internal/config"
	"github.com/odyssia-dev/realmgate/internal/metrics"
	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

// DispatchFunc 入站帧回调。msg 的底层存储仅在回调期间有效。
type DispatchFunc func(sessionID uint32, opcode byte, msg *wire.Message)

// Server 游戏网关 TCP 服务：接受连接、建立会话、按帧投递到分发回调
type Server struct {
	cfg      cfgpkg.TCPConfig
	sessions *session.Manager
	dispatch DispatchFunc
	logger   *zap.Logger
	appm     *metrics.AppMetrics

	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	limiter *ConnectionLimiter
	accept  *AcceptLimiter
}

// New 创建 TCP 网关。appm 可为 nil。
func New(cfg cfgpkg.TCPConfig, sessions *session.Manager, dispatch DispatchFunc, logger *zap.Logger, appm *metrics.AppMetrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		dispatch: dispatch,
		logger:   logger,
		appm:     appm,
		stopC:    make(chan struct{}),
		limiter:  NewConnectionLimiter(cfg.MaxConnections, 0),
		accept:   NewAcceptLimiter(cfg.AcceptRate, cfg.AcceptBurst),
	}
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}

			if !s.accept.Allow() {
				s.logger.Warn("accept rate limited", zap.String("remote", conn.RemoteAddr().String()))
				_ = conn.Close()
				continue
			}
			if err := s.limiter.Acquire(context.Background()); err != nil {
				s.logger.Warn("connection limit reached", zap.String("remote", conn.RemoteAddr().String()))
				_ = conn.Close()
				continue
			}
			if s.appm != nil {
				s.appm.TCPAccepted.Inc()
			}

			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.limiter.Release()
				s.handleConn(c)
			}(conn)
		}
	}()
	return nil
}

func (s *Server) handleConn(c net.Conn) {
	defer c.Close()

	connID := uuid.NewString()
	remote := c.RemoteAddr().String()

	sess := s.sessions.Attach(remote, func(p []byte) error {
		_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		_, err := c.Write(p)
		return err
	})
	defer func() {
		s.sessions.Detach(sess.ID())
		if s.appm != nil {
			s.appm.OnlineGauge.Set(float64(s.sessions.Count()))
		}
		s.logger.Info("connection closed",
			zap.String("conn_id", connID),
			zap.Uint32("session_id", sess.ID()),
		)
	}()

	if s.appm != nil {
		s.appm.OnlineGauge.Set(float64(s.sessions.Count()))
	}
	s.logger.Info("connection established",
		zap.String("conn_id", connID),
		zap.Uint32("session_id", sess.ID()),
		zap.String("remote", remote),
	)

	br := bufio.NewReader(c)
	for {
		_ = c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		opcode, payload, err := wire.ReadFrame(br)
		if err != nil {
			if errors.Is(err, wire.ErrEmptyFrame) {
				continue
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read frame failed",
					zap.String("conn_id", connID),
					zap.Error(err),
				)
			}
			return
		}
		if s.appm != nil {
			s.appm.TCPBytesReceived.Add(float64(len(payload) + 3))
		}

		// 报文缓冲归本调用栈所有，dispatch 返回后即作废
		s.dispatch(sess.ID(), opcode, wire.NewMessage(payload))
	}
}

// Shutdown 优雅关闭监听并等待连接退出
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopC)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// Addr 实际监听地址（测试用，Start 之后有效）
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
