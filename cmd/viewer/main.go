// Command viewer is a terminal observer for a running buildcraft server. It renders the
// observer frame stream and, when the control endpoint accepts it, sends placement
// requests from the keyboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"buildcraft.ai/internal/protocol"
)

type options struct {
	addr     string
	every    int
	viewOnly bool
	logFile  string
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "viewer",
		Short:         "Watch a buildcraft world in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(o.logFile, o.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, o, logger)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().IntVar(&o.every, "every", 1, "ask for one frame every N ticks")
	cmd.Flags().BoolVar(&o.viewOnly, "view-only", false, "do not open a control session")
	cmd.Flags().StringVar(&o.logFile, "log-file", "", "write logs to this file (the terminal is busy)")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newLogger(path string, verbose bool) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func run(ctx context.Context, o options, logger *zap.Logger) error {
	base, err := url.Parse(strings.TrimRight(o.addr, "/"))
	if err != nil {
		return fmt.Errorf("bad --addr: %w", err)
	}
	boot, err := fetchBootstrap(ctx, base)
	if err != nil {
		return err
	}
	logger.Info("bootstrap",
		zap.String("world", boot.WorldID),
		zap.Int("width", boot.WorldParams.Width),
		zap.Int("height", boot.WorldParams.Height))

	obs, err := dialObserver(ctx, base, o.every)
	if err != nil {
		return err
	}
	defer obs.Close()
	frames := make(chan *protocol.FrameMsg, 1)
	go readFrames(obs, frames, logger)

	var ctl *controlClient
	if !o.viewOnly {
		ctl, err = dialControl(ctx, base, boot.Catalog.Types)
		if err != nil {
			logger.Warn("control session unavailable; view only", zap.Error(err))
			ctl = nil
		} else {
			defer ctl.Close()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	v := &viewer{
		screen:   screen,
		ctl:      ctl,
		cellSize: boot.WorldParams.CellSize,
		width:    boot.WorldParams.Width,
		height:   boot.WorldParams.Height,
		cursor:   [2]int{boot.WorldParams.Width / 2, boot.WorldParams.Height / 2},
	}
	if ctl == nil {
		v.msg = "view only"
	}
	return v.loop(ctx, frames)
}

type viewer struct {
	screen   tcell.Screen
	ctl      *controlClient
	cellSize float64
	width    int
	height   int

	frame  *protocol.FrameMsg
	cursor [2]int
	msg    string
}

var errQuit = errors.New("quit")

func (v *viewer) loop(ctx context.Context, frames <-chan *protocol.FrameMsg) error {
	done := make(chan struct{})
	defer close(done)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	var results <-chan protocol.ResultMsg
	if v.ctl != nil {
		results = v.ctl.results
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	v.redraw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return errors.New("observer connection closed")
			}
			v.frame = f
			v.redraw()
		case res, ok := <-results:
			if !ok {
				results = nil
				v.ctl = nil
				v.msg = "control session closed; view only"
			} else {
				v.msg = describeResult(res)
			}
			v.redraw()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if err := v.handleKey(ev); err != nil {
					if errors.Is(err, errQuit) {
						return nil
					}
					v.msg = err.Error()
				}
				v.redraw()
			case *tcell.EventResize:
				v.screen.Sync()
				v.redraw()
			}
		case <-ticker.C:
			v.redraw()
		}
	}
}

func (v *viewer) redraw() {
	draw(v.screen, v.frame, v.cellSize, v.cursor, v.msg)
}

func (v *viewer) handleKey(ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return errQuit
	case tcell.KeyUp:
		v.moveCursor(0, 1)
	case tcell.KeyDown:
		v.moveCursor(0, -1)
	case tcell.KeyLeft:
		v.moveCursor(-1, 0)
	case tcell.KeyRight:
		v.moveCursor(1, 0)
	case tcell.KeyRune:
		return v.handleRune(ev.Rune())
	}
	return nil
}

func (v *viewer) handleRune(r rune) error {
	if r == 'q' {
		return errQuit
	}
	if v.ctl == nil {
		return nil
	}
	cell := v.cursor
	switch r {
	case 'f':
		return v.ctl.place("FLOOR", cell)
	case 'w':
		return v.ctl.place("WALL", cell)
	case 'd':
		return v.ctl.place("DOOR", cell)
	case 'x':
		return v.ctl.send(protocol.TypeBulldoze, "", &cell)
	case 's':
		return v.ctl.send(protocol.TypeSpawnWorker, "", &cell)
	case 'c':
		return v.ctl.send(protocol.TypeCancelAll, "", nil)
	}
	return nil
}

func (v *viewer) moveCursor(dx, dy int) {
	v.cursor[0] = clamp(v.cursor[0]+dx, 0, v.width-1)
	v.cursor[1] = clamp(v.cursor[1]+dy, 0, v.height-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func describeResult(r protocol.ResultMsg) string {
	if r.OK {
		switch {
		case r.Ghost != 0:
			return fmt.Sprintf("%s: ghost %d", r.ResultFor, r.Ghost)
		case r.Worker != 0:
			return fmt.Sprintf("%s: worker %d", r.ResultFor, r.Worker)
		case r.Removed != "":
			return fmt.Sprintf("%s: removed %s", r.ResultFor, strings.ToLower(r.Removed))
		}
		return fmt.Sprintf("%s: ok (%d cancelled)", r.ResultFor, r.Cancelled)
	}
	return fmt.Sprintf("%s: %s %s", r.ResultFor, r.Code, r.Message)
}

func fetchBootstrap(ctx context.Context, base *url.URL) (protocol.BootstrapResponse, error) {
	var boot protocol.BootstrapResponse
	u := base.JoinPath("/observer/bootstrap")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return boot, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return boot, fmt.Errorf("bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return boot, fmt.Errorf("bootstrap: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		return boot, fmt.Errorf("bootstrap: %w", err)
	}
	if boot.ProtocolVersion != protocol.Version {
		return boot, fmt.Errorf("bootstrap: server speaks protocol %q, want %q", boot.ProtocolVersion, protocol.Version)
	}
	return boot, nil
}

// wsURL swaps the HTTP scheme of base for its websocket equivalent.
func wsURL(base *url.URL, path string) string {
	u := base.JoinPath(path)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

func dialObserver(ctx context.Context, base *url.URL, every int) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(base, "/observer/ws"), nil)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	sub := protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, EveryTicks: every}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("observer: %w", err)
	}
	return conn, nil
}

// readFrames keeps only the newest undelivered frame and closes frames when the
// connection ends.
func readFrames(conn *websocket.Conn, frames chan *protocol.FrameMsg, log *zap.Logger) {
	defer close(frames)
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			log.Debug("observer read ended", zap.Error(err))
			return
		}
		var f protocol.FrameMsg
		if err := json.Unmarshal(b, &f); err != nil || f.Type != protocol.TypeFrame {
			log.Warn("skipping observer message", zap.ByteString("msg", b))
			continue
		}
		select {
		case frames <- &f:
			continue
		default:
		}
		select {
		case <-frames:
		default:
		}
		select {
		case frames <- &f:
		default:
		}
	}
}
