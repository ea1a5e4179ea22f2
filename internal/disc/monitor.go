package disc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"platter/internal/logging"
)

// Waiter blocks until media is present in the configured drive. It listens
// for udev netlink events and falls back to polling the device label when
// the netlink socket is unavailable (for example without the needed
// permissions).
type Waiter struct {
	device       string
	pollInterval time.Duration
	logger       *slog.Logger

	// connect is swappable for tests.
	connect func() (ueventSource, error)
}

type ueventSource interface {
	Monitor(queue chan netlink.UEvent, errs chan error, matcher netlink.Matcher) chan struct{}
	Close() error
}

// NewWaiter creates a disc waiter for the given device.
func NewWaiter(device string, logger *slog.Logger) *Waiter {
	return &Waiter{
		device:       strings.TrimSpace(device),
		pollInterval: 5 * time.Second,
		logger:       logging.NewComponentLogger(logger, "disc-waiter"),
		connect: func() (ueventSource, error) {
			conn := new(netlink.UEventConn)
			if err := conn.Connect(netlink.UdevEvent); err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// Wait blocks until a disc is inserted into the configured device or the
// context is cancelled.
func (w *Waiter) Wait(ctx context.Context) error {
	if ready, _ := w.mediaPresent(ctx); ready {
		return nil
	}

	conn, err := w.connect()
	if err != nil {
		w.logger.Warn("netlink unavailable, falling back to polling", logging.Error(err))
		return w.poll(ctx)
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, discMatcher())
	defer close(monitorQuit)

	w.logger.Info("waiting for disc", logging.String("device", w.device))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case uevent := <-queue:
			if w.matchesDevice(uevent) {
				w.logger.Info("disc media detected", logging.String("device", w.device))
				return nil
			}
		case err := <-errs:
			w.logger.Warn("netlink monitor error", logging.Error(err))
		}
	}
}

func (w *Waiter) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ready, _ := w.mediaPresent(ctx); ready {
				return nil
			}
		}
	}
}

func (w *Waiter) mediaPresent(ctx context.Context) (bool, error) {
	label, err := ReadLabel(ctx, w.device, 10*time.Second)
	if err != nil {
		return false, err
	}
	return label != "", nil
}

// discMatcher matches udev events for optical media insertion:
// SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1, ACTION=change|add.
func discMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (w *Waiter) matchesDevice(uevent netlink.UEvent) bool {
	devname := uevent.Env["DEVNAME"]
	if devname == "" {
		devpath := uevent.Env["DEVPATH"]
		if devpath == "" {
			return false
		}
		parts := strings.Split(devpath, "/")
		devname = "/dev/" + parts[len(parts)-1]
	}
	return devname == w.device
}
