package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// lifecycle is one run of the refresh and inactivity tickers.
type lifecycle struct {
	stop chan struct{}
}

func (m *Manager) startTimersLocked() {
	if !m.timersEnabled || m.closed || m.timers != nil {
		return
	}
	lc := &lifecycle{stop: make(chan struct{})}
	m.timers = lc

	m.wg.Add(1)
	go m.runTimers(lc)
	m.logger.Debug("lifecycle timers started",
		zap.Duration("refresh_every", m.refreshEvery),
		zap.Duration("check_every", m.checkEvery),
	)
}

// stopTimersLocked signals the running tickers to exit. It does not wait:
// the timer goroutine itself may be the caller (refresh failure -> logout).
func (m *Manager) stopTimersLocked() {
	if m.timers == nil {
		return
	}
	close(m.timers.stop)
	m.timers = nil
}

func (m *Manager) runTimers(lc *lifecycle) {
	defer m.wg.Done()

	refresh := time.NewTicker(m.refreshEvery)
	defer refresh.Stop()
	check := time.NewTicker(m.checkEvery)
	defer check.Stop()

	for {
		select {
		case <-lc.stop:
			return
		case <-refresh.C:
			if stopped(lc) {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout)
			// RefreshToken already logs out on failure.
			_ = m.RefreshToken(ctx)
			cancel()
		case <-check.C:
			if stopped(lc) {
				return
			}
			m.CheckInactivity()
		}
	}
}

func stopped(lc *lifecycle) bool {
	select {
	case <-lc.stop:
		return true
	default:
		return false
	}
}

// TimersRunning reports whether the lifecycle timers are active.
func (m *Manager) TimersRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers != nil
}
