//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// epollTimeoutMS bounds each epoll_wait so cancellation is noticed.
const epollTimeoutMS = 250

// runActivationKeys reads the configured input devices with epoll and emits
// GestureObserved for activation key presses until ctx is canceled.
func runActivationKeys(ctx context.Context, cfg ActivationKeysConfig, events chan<- Event, logger *slog.Logger) error {
	if len(cfg.Devices) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(cfg.Devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, path := range cfg.Devices {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", path, err)
		}
		files = append(files, f)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)
	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
		}
	}

	keymap := newActivationKeymap(cfg)
	logger.Info("activation keys listening", "devices", cfg.Devices,
		"activate_key", cfg.ActivateKey, "deactivate_key", cfg.DeactivateKey)

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollTimeoutMS)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s (fd=%d)", f.Name(), fd)
			}

			if _, err := f.Read(buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			reader.Reset(buf)
			var ev inputEvent
			if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
				continue
			}

			g, ok := keymap.gestureFor(ev)
			if !ok {
				continue
			}
			logger.Debug("activation key", "device", f.Name(), "code", ev.Code, "gesture", g)

			select {
			case <-ctx.Done():
				return nil
			case events <- GestureObserved{Gesture: g, Origin: "keys"}:
			}
		}
	}
}
