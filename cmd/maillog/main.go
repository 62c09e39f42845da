package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"maillog/internal/app"
	"maillog/internal/severity"
	"maillog/pkg/logx"
)

func main() {
	var (
		cfgPath   string
		daemonize bool
		input     string
		level     string
	)
	flag.StringVar(&cfgPath, "config", "./maillog.yaml", "path to config (json or yaml)")
	flag.BoolVar(&daemonize, "daemon", false, "keep running: rotate on schedule, reload config, serve metrics")
	flag.StringVar(&input, "input", "-", `file to read "LEVEL message" lines from ("-" is stdin)`)
	flag.StringVar(&level, "level", "ERROR", "level for lines without a level token")
	flag.Parse()

	def, err := severity.Parse(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	a.DefaultLevel = def

	in, closeIn, err := openInput(input)
	if err != nil {
		_ = a.Close(context.Background())
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer closeIn()

	if !daemonize {
		err := app.ReadLines(ctx, in, a.Handle)
		if cerr := a.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(ctx, a, in); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// runDaemon serves until SIGINT/SIGTERM. EOF on the input does not stop
// it. SIGHUP sends the current digest immediately.
func runDaemon(ctx context.Context, a *app.App, in io.Reader) error {
	log := a.Log()
	if err := a.Run(ctx); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	sup := a.Supervisor()
	sup.Go("input", func(c context.Context) error {
		err := app.ReadLines(c, in, a.Handle)
		if err == nil {
			log.Info("input closed; still running")
		}
		return err
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	sup.Go("rotate.sighup", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case <-hup:
				if err := a.Rotate(c); err != nil {
					log.Warn("rotation failed", logx.Err(err))
				}
			}
		}
	})

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		sup.Go("systemd.watchdog", func(c context.Context) error {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}

	<-ctx.Done()
	log.Info("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	sctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return a.Close(sctx)
}
