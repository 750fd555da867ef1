// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"pitchosc/internal/audio"
	"pitchosc/internal/config"
	"pitchosc/internal/events"
	applog "pitchosc/internal/log"
	"pitchosc/internal/midi"
	"pitchosc/internal/monitor"
	"pitchosc/internal/player"
	"pitchosc/internal/transport"
	"pitchosc/internal/transport/udp"
	"pitchosc/internal/tui"
	"pitchosc/pkg/build"
)

// recordSeconds sizes the recorder ring.
const recordSeconds = 2

// closer collects cleanup in reverse order of acquisition.
type closer []func() error

func (c *closer) add(f func() error) { *c = append(*c, f) }

func (c closer) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			applog.Warnf("Shutdown: %v", err)
		}
	}
}

// Run starts the duplex stream and every supporting goroutine, then blocks
// until ctx is cancelled or the monitor exits.
//
// Startup is entirely cold path: devices, files, sockets and buffers are
// all acquired before the stream starts, so the callback only ever sees
// memory that is already in place.
func Run(ctx context.Context, cfg *config.Config, opts *Options) error {
	var cleanup closer
	defer cleanup.close()

	if err := audio.Initialize(); err != nil {
		return err
	}
	cleanup.add(audio.Terminate)

	proc, err := audio.NewTracker(cfg)
	if err != nil {
		return err
	}

	var pl *player.Player
	if cfg.Player.Enabled {
		pl, err = player.New(cfg.Player.Directory, int(cfg.Audio.SampleRate))
		if err != nil {
			return err
		}
		pl.SetLooping(cfg.Player.Looping)
		if err := pl.Open(cfg.Player.Index); err != nil {
			return err
		}
		proc.SetSource(pl)
	}

	if cfg.Recording.Enabled {
		rec, path, err := startRecording(cfg)
		if err != nil {
			return err
		}
		proc.SetTap(rec)
		cleanup.add(func() error {
			if err := rec.Close(); err != nil {
				return err
			}
			fmt.Printf("\nRecording saved to: %s\n", path)
			return nil
		})
	}

	evTransport, err := openEventTransport(cfg.Events)
	if err != nil {
		return err
	}
	if c, ok := evTransport.(io.Closer); ok {
		cleanup.add(c.Close)
	}
	queue, loop, err := newEventLoop(cfg.Events, evTransport)
	if err != nil {
		return err
	}

	out, err := openMonitorTransports(cfg.Transport)
	if err != nil {
		return err
	}
	cleanup.add(out.Close)

	relayOpts := monitor.Options{
		Source:   proc.Snapshot(),
		Out:      out,
		Interval: cfg.Transport.ReportInterval,
		Queue:    queue,
		Loop:     loop,
	}
	if s, ok := evTransport.(interface{ Stats() midi.Stats }); ok {
		relayOpts.TransportStats = s.Stats
	}
	relay, err := monitor.New(relayOpts)
	if err != nil {
		return err
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		cleanup.add(sender.Close)
		pub, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, proc.Snapshot())
		if err != nil {
			return err
		}
		pub.Start()
		cleanup.add(pub.Stop)
	}

	engine, err := audio.NewEngine(cfg, proc)
	if err != nil {
		return err
	}
	// CRITICAL: the first callback after Start begins the hot path.
	if err := engine.Start(); err != nil {
		return err
	}
	cleanup.add(engine.Stop)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })

	if opts.TUI {
		// The monitor owns the terminal; logs go to a file instead.
		logPath := filepath.Join(os.TempDir(), "pitchosc.log")
		if f, err := os.Create(logPath); err == nil {
			applog.SetOutput(f)
			cleanup.add(f.Close)
		}
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, tui.Options{
				Status:       proc.Snapshot(),
				Player:       playerControl(pl),
				Loop:         loop,
				Devices:      audio.HostDevices,
				InputDevice:  cfg.Audio.InputDevice,
				OutputDevice: cfg.Audio.OutputDevice,
				FileIndex:    cfg.Player.Index,
			})
		})
	} else {
		applog.Infof("Running, press Ctrl+C to stop (%s --help for usage)", build.GetBuildFlags().Name)
		g.Go(func() error {
			return statusLog(gctx, proc.Snapshot(), time.Second)
		})
	}

	return g.Wait()
}

// playerControl avoids handing the monitor a typed nil.
func playerControl(p *player.Player) tui.PlayerControl {
	if p == nil {
		return nil
	}
	return p
}

func startRecording(cfg *config.Config) (*audio.Recorder, string, error) {
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	name := "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	path := filepath.Join(cfg.Recording.OutputDir, name)

	sr := int(cfg.Audio.SampleRate)
	rec, err := audio.CreateRecorder(path, sr, cfg.Recording.BitDepth, sr*recordSeconds)
	if err != nil {
		return nil, "", err
	}
	return rec, path, nil
}

func openEventTransport(ev config.EventsConfig) (midi.Transport, error) {
	switch ev.Transport {
	case config.TransportSerial:
		return midi.OpenSerial(ev.Device, ev.QueueCapacity)
	case config.TransportPort:
		return midi.OpenPort(ev.Port, ev.QueueCapacity)
	default:
		return midi.NullTransport{}, nil
	}
}

func newEventLoop(ev config.EventsConfig, t midi.Transport) (*events.Queue, *events.Loop, error) {
	policy, err := events.ParseDropPolicy(ev.DropPolicy)
	if err != nil {
		return nil, nil, err
	}
	queue, err := events.NewQueue(ev.QueueCapacity, policy)
	if err != nil {
		return nil, nil, err
	}
	forward, err := midi.ParseTypes(ev.Forward)
	if err != nil {
		return nil, nil, err
	}
	loop, err := events.NewLoop(t, queue, forward, ev.PollInterval)
	if err != nil {
		return nil, nil, err
	}
	return queue, loop, nil
}

func openMonitorTransports(tc config.TransportConfig) (transport.Multi, error) {
	out := transport.Multi{transport.NewLoggingTransport()}

	if tc.WSEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WSAddress)
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, ws)
	}
	if tc.UDPReportAddress != "" {
		sender, err := udp.NewSender(tc.UDPReportAddress)
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, sender)
	}
	return out, nil
}

// statusLog reports the tracked pitch at info level while no monitor UI is
// running.
func statusLog(ctx context.Context, snap *audio.Snapshot, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := snap.Load()
			if st.Detections == last {
				continue
			}
			last = st.Detections
			applog.Infow("Tracker", "freq", fmt.Sprintf("%.2f", st.Frequency), "note", noteLabel(st.Frequency),
				"periodicity", fmt.Sprintf("%.2f", st.Periodicity), "detections", st.Detections)
		}
	}
}
