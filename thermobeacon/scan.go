package thermobeacon

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Scanner runs one discovery window per adapter and reassembles a full
// reading for every target device it finds. Peripherals are processed
// strictly sequentially, so result order follows adapter enumeration order,
// then peripheral enumeration order.
type Scanner struct {
	Manager    Manager
	ScanWindow time.Duration

	// passed through to the per-device Reassembler; zero means defaults
	PollInterval time.Duration
	MaxPolls     int
}

// Scan collects one FullReadResult per target device that broadcast both of
// its frame kinds. Per-device failures are logged and skipped; only the
// complete absence of adapters is fatal.
func (s *Scanner) Scan(ctx context.Context, targets []MAC) ([]FullReadResult, error) {
	adapters, err := s.Manager.Adapters()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate adapters")
	}
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}

	want := make(map[MAC]bool, len(targets))
	for _, mac := range targets {
		want[mac] = true
	}

	results := []FullReadResult{}
	for _, adapter := range adapters {
		found, err := s.scanAdapter(ctx, adapter, want)
		if err != nil {
			return results, err
		}
		results = append(results, found...)
	}
	return results, nil
}

// scanAdapter returns an error only when the context is cancelled; every
// other failure is local to a device or to the adapter and logged.
func (s *Scanner) scanAdapter(ctx context.Context, adapter Adapter, want map[MAC]bool) ([]FullReadResult, error) {
	log.Debugf("starting scan on %s", adapter.Name())
	if err := adapter.StartScan(ctx); err != nil {
		log.Errorf("failed to start scan on %s: %s", adapter.Name(), err)
		return nil, nil
	}
	// stopping is never skipped because of a single device's failure
	defer func() {
		if err := adapter.StopScan(); err != nil {
			log.Errorf("failed to stop scan on %s: %s", adapter.Name(), err)
		}
	}()

	if err := sleepCtx(ctx, s.ScanWindow); err != nil {
		return nil, errors.Wrap(err, "scan interrupted")
	}

	peripherals, err := adapter.Peripherals()
	if err != nil {
		log.Errorf("failed to list peripherals on %s: %s", adapter.Name(), err)
		return nil, nil
	}
	if len(peripherals) == 0 {
		log.Warnf("no peripherals visible on %s", adapter.Name())
		return nil, nil
	}

	var results []FullReadResult
	for _, p := range peripherals {
		if !want[p.Addr()] {
			continue
		}
		props, err := p.Properties(ctx)
		if err != nil {
			log.Warnf("failed to read properties of %s: %s", p.Addr(), err)
			continue
		}
		if props.LocalName != ProductName {
			continue
		}

		reassembler := Reassembler{PollInterval: s.PollInterval, MaxPolls: s.MaxPolls}
		result, err := reassembler.Read(ctx, p, props)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			log.Warnf("giving up on %s: %s", p.Addr(), err)
			continue
		}
		log.Debugf("completed read from %s", p.Addr())
		results = append(results, result)
	}
	return results, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
