package connection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const reconnectKey = "reconnect"

// Reconnect retries the last-known-good address.
func (m *manager) Reconnect(ctx context.Context) (Status, error) {
	return m.runReconnect(ctx, nil)
}

// autoReconnect retries after the channel of token was lost. It gives up
// without dialing when a Connect or Disconnect moved the token first.
func (m *manager) autoReconnect(token uint64) (Status, error) {
	return m.runReconnect(m.ctx, &token)
}

// runReconnect joins the loop in flight or starts one. Disconnect and Connect
// forget the shared loop, so callers after them never join a canceled one.
func (m *manager) runReconnect(ctx context.Context, since *uint64) (Status, error) {
	ch := m.reconnects.DoChan(reconnectKey, func() (any, error) {
		status, err := m.reconnect(since)
		return status, err
	})

	select {
	case res := <-ch:
		status, _ := res.Val.(Status)
		return status, res.Err
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}

// reconnect runs one bounded retry loop: up to MaxRetryAttempts attempts with a
// fixed RetryDelay between them and none before the first. Disconnect, Close or
// a manual Connect end the loop at the next checkpoint. A non-nil since must
// still be the current token when the loop starts.
func (m *manager) reconnect(since *uint64) (Status, error) {
	addr, err := m.lastKnownGood()
	if err != nil {
		m.logger.Warn("reconnect requested without a known address", "error", err)
		return m.Status(), err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return StatusDisconnected, ErrAlreadyClosed
	}
	if since != nil && *since != m.token {
		status := m.status
		m.mu.Unlock()
		m.logger.Debug("automatic reconnect superseded", "address", addr.String())
		return status, ErrAttemptCanceled
	}
	if m.status == StatusConnected && m.client != nil {
		m.mu.Unlock()
		return StatusConnected, nil
	}
	m.wg.Add(1)
	defer m.wg.Done()

	token, ctx := m.beginAttemptLocked(m.ctx)
	old := m.detachLocked()
	m.addr = addr
	m.retry = RetryState{
		Max:         m.cfg.MaxRetryAttempts,
		InFlight:    true,
		LastAddress: addr.String(),
	}
	m.mu.Unlock()

	closeClient(old)

	m.logger.Info("reconnecting",
		"address", addr.String(),
		"max_attempts", m.cfg.MaxRetryAttempts,
		"delay", m.cfg.RetryDelay,
	)

	var lastErr error
	for n := 1; n <= m.cfg.MaxRetryAttempts; n++ {
		if n > 1 && !sleepWithContext(ctx, m.cfg.RetryDelay) {
			return m.superseded()
		}

		m.mu.Lock()
		if token != m.token || m.closed {
			m.mu.Unlock()
			return m.superseded()
		}
		m.retry.Attempts = n
		m.setStatusLocked(StatusConnecting, nil, n)
		m.mu.Unlock()

		status, err := m.attempt(ctx, token, addr, n)
		if err == nil {
			m.logger.Info("reconnected", "address", addr.String(), "attempt", n)
			return status, nil
		}
		if errors.Is(err, ErrAttemptCanceled) {
			return m.superseded()
		}

		lastErr = err
		m.logger.Warn("reconnect attempt failed",
			"address", addr.String(),
			"attempt", n,
			"max_attempts", m.cfg.MaxRetryAttempts,
			"error", err,
		)
	}

	m.mu.Lock()
	if token != m.token || m.closed {
		m.mu.Unlock()
		return m.superseded()
	}
	defer m.mu.Unlock()

	err = fmt.Errorf("%w after %d attempts to %s: %w", ErrReconnectExhausted, m.cfg.MaxRetryAttempts, addr, lastErr)
	m.retry.InFlight = false
	m.retry.Exhausted = true
	m.setStatusLocked(StatusFailed, err, m.cfg.MaxRetryAttempts)
	m.logger.Error("reconnect exhausted, manual address entry required",
		"address", addr.String(),
		"attempts", m.cfg.MaxRetryAttempts,
	)

	return StatusFailed, err
}

// superseded reports the outcome for a loop that lost its token. When a manual
// Connect took over, it waits for that attempt: a vehicle that ends up
// connected is success for every Reconnect caller.
func (m *manager) superseded() (Status, error) {
	m.mu.Lock()
	done := m.connectDone
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-m.ctx.Done():
		}
	}

	if status := m.Status(); status == StatusConnected {
		return status, nil
	}
	return m.Status(), ErrAttemptCanceled
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
