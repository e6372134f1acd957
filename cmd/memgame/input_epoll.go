//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// evdevBoard reads player and start inputs from Linux input devices and drives
// indicators through sysfs LEDs.
//
// A single goroutine (Run) waits on all devices with epoll and keeps a table
// of pressed keys. The game loop samples that table once per tick.
type evdevBoard struct {
	files []*os.File

	mu   sync.Mutex
	keys keyStates

	channelKeys []uint16 // ChannelID -> key code
	startKey    uint16
	ledDirs     [numIndicators]string

	// getKeys fills a key bitmap for one device; nil means EVIOCGKEY.
	getKeys func(f *os.File, bitmap []byte) error

	logger *slog.Logger
}

func openEvdevBoard(cfg EvdevConfig, logger *slog.Logger) (Board, func(context.Context) error, error) {
	b := &evdevBoard{
		keys:     make(keyStates),
		startKey: cfg.StartKey,
		logger:   logger,
	}
	b.ledDirs[IndicatorPress] = ExpandPath(cfg.LEDs.Press)
	b.ledDirs[IndicatorHeartbeat] = ExpandPath(cfg.LEDs.Heartbeat)
	for _, keys := range cfg.PlayerKeys {
		b.channelKeys = append(b.channelKeys, keys...)
	}

	for _, dev := range cfg.Devices {
		f, err := os.Open(dev)
		if err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("open input device %s: %w", dev, err)
		}
		b.files = append(b.files, f)
		logger.Info("opened input device", "device", dev)
	}

	// Start from the real key state rather than "all released".
	if err := b.ReinitializePorts(); err != nil {
		b.Close()
		return nil, nil, err
	}

	return b, b.Run, nil
}

// Run reads input events until ctx is canceled or a device fails.
func (b *evdevBoard) Run(ctx context.Context) error {
	if len(b.files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)
	for _, f := range b.files {
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

	const (
		maxEvents = 32
		// Bounded wait so cancellation is noticed.
		waitMS = 100
	)
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, waitMS)
		if err != nil {
			if err == syscall.EINTR {
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

			ev, err := decodeInputEvent(buf)
			if err != nil {
				// Skip malformed events
				continue
			}

			if b.applyEvent(ev) && ev.Value != evValueRepeat {
				b.logger.Debug("key", "code", ev.Code, "value", ev.Value, "device", f.Name())
			}
		}
	}
}

// applyEvent records ev in the key table and reports whether it was a key event.
func (b *evdevBoard) applyEvent(ev inputEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys.apply(ev)
}

func (b *evdevBoard) ReadChannel(ch ChannelID) Level {
	if ch < 0 || int(ch) >= len(b.channelKeys) {
		return Inactive
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keys[b.channelKeys[ch]] {
		return Active
	}
	return Inactive
}

func (b *evdevBoard) StartActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keys[b.startKey]
}

// SetIndicator writes the LED brightness file. Unwired indicators are no-ops.
func (b *evdevBoard) SetIndicator(id IndicatorID, on bool) error {
	if id < 0 || id >= numIndicators {
		return fmt.Errorf("unknown indicator %d", id)
	}
	dir := b.ledDirs[id]
	if dir == "" {
		return nil
	}
	val := []byte("0\n")
	if on {
		val = []byte("1\n")
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), val, 0); err != nil {
		return fmt.Errorf("write %s led: %w", id, err)
	}
	return nil
}

// ReinitializePorts re-reads the full key state of every device with
// EVIOCGKEY, recovering from any events lost while the loop was busy.
//
// The table stays locked from the first read until the swap, so an event Run
// applies meanwhile lands on the fresh table instead of being overwritten.
func (b *evdevBoard) ReinitializePorts() error {
	getKeys := b.getKeys
	if getKeys == nil {
		getKeys = ioctlGetKeys
	}
	bitmap := make([]byte, keyBitmapBytes)
	fresh := make(keyStates)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range b.files {
		clear(bitmap)
		if err := getKeys(f, bitmap); err != nil {
			return fmt.Errorf("EVIOCGKEY %s: %w", f.Name(), err)
		}
		for _, code := range b.trackedKeys() {
			if keyBitSet(bitmap, code) {
				fresh[code] = true
			}
		}
	}

	b.keys = fresh
	return nil
}

func (b *evdevBoard) trackedKeys() []uint16 {
	return append([]uint16{b.startKey}, b.channelKeys...)
}

func (b *evdevBoard) Close() error {
	var errs []error
	for _, f := range b.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.files = nil
	return errors.Join(errs...)
}

// eviocgkey is EVIOCGKEY(len) from <linux/input.h>: _IOC(_IOC_READ, 'E', 0x18, len).
func eviocgkey(n int) uintptr {
	const iocRead = 2
	return uintptr(iocRead<<30 | n<<16 | 'E'<<8 | 0x18)
}

func ioctlGetKeys(f *os.File, bitmap []byte) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		eviocgkey(len(bitmap)),
		uintptr(unsafe.Pointer(&bitmap[0])),
	)
	if errno != 0 {
		return errno
	}
	return nil
}
