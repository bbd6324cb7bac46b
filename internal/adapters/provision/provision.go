// Package provision sets up the per-room channels players gather in.
//
// Provisioners are recoverable by design: a full pool or a mismatched
// channel kind falls through to the next strategy in the chain, and only a
// failure of the whole chain reaches the caller.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/pkg/logger"
)

// Spec describes the room a channel is provisioned for.
type Spec struct {
	EventID   string
	RoomIndex int
	Name      string
}

// Channel is a provisioned room destination.
type Channel struct {
	ID   string
	Name string
}

// Provisioner creates and releases room channels.
type Provisioner interface {
	Create(ctx context.Context, spec Spec) (Channel, error)
	Release(ctx context.Context, channelID string) error
}

// recoverable reports whether a fallback strategy may still succeed.
func recoverable(err error) bool {
	return errors.Is(err, ErrNoFreeChannels) || errors.Is(err, ErrWrongChannelType)
}

// Pool hands out channels from a fixed set and takes them back on release.
type Pool struct {
	mu    sync.Mutex
	free  []Channel
	inUse map[string]Channel
}

// NewPool creates a pool over the given channels.
func NewPool(channels []Channel) *Pool {
	return &Pool{
		free:  append([]Channel(nil), channels...),
		inUse: make(map[string]Channel, len(channels)),
	}
}

// Create implements Provisioner.
func (p *Pool) Create(_ context.Context, spec Spec) (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return Channel{}, fmt.Errorf("%w: room %d", ErrNoFreeChannels, spec.RoomIndex)
	}
	ch := p.free[0]
	p.free = p.free[1:]
	p.inUse[ch.ID] = ch
	return ch, nil
}

// Release implements Provisioner. Releasing an unknown channel is a no-op.
func (p *Pool) Release(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.inUse[channelID]
	if !ok {
		return nil
	}
	delete(p.inUse, channelID)
	p.free = append(p.free, ch)
	return nil
}

// Free returns the number of channels currently available.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Threads mints a fresh thread per room. It never runs out.
type Threads struct{}

// NewThreads creates a thread provisioner.
func NewThreads() *Threads { return &Threads{} }

// Create implements Provisioner.
func (t *Threads) Create(_ context.Context, spec Spec) (Channel, error) {
	return Channel{ID: uuid.NewString(), Name: spec.Name}, nil
}

// Release implements Provisioner. Threads expire on their own.
func (t *Threads) Release(context.Context, string) error { return nil }

// Fallback tries each provisioner in order, moving on only for
// recoverable failures. Releases are routed back to whichever provisioner
// created the channel.
type Fallback struct {
	chain []Provisioner
	log   logger.Logger

	mu     sync.Mutex
	origin map[string]Provisioner
}

// NewFallback creates a chain over the given provisioners.
func NewFallback(log logger.Logger, chain ...Provisioner) *Fallback {
	if log == nil {
		log = logger.Named("provision")
	}
	return &Fallback{
		chain:  chain,
		log:    log,
		origin: make(map[string]Provisioner),
	}
}

// Create implements Provisioner.
func (f *Fallback) Create(ctx context.Context, spec Spec) (Channel, error) {
	var lastErr error
	for _, p := range f.chain {
		ch, err := p.Create(ctx, spec)
		if err == nil {
			f.mu.Lock()
			f.origin[ch.ID] = p
			f.mu.Unlock()
			return ch, nil
		}
		if !recoverable(err) {
			return Channel{}, err
		}
		f.log.Warn(ctx, "provisioner fell through", logger.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoFreeChannels
	}
	return Channel{}, fmt.Errorf("all provisioners exhausted: %w", lastErr)
}

// Release implements Provisioner.
func (f *Fallback) Release(ctx context.Context, channelID string) error {
	f.mu.Lock()
	p, ok := f.origin[channelID]
	delete(f.origin, channelID)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Release(ctx, channelID)
}

// RoleManager grants room visibility to seated players. Grants are best
// effort; failures are reported, never fatal.
type RoleManager interface {
	Grant(ctx context.Context, player model.PlayerID, channelID string) error
	Revoke(ctx context.Context, player model.PlayerID, channelID string) error
}

// LogRoles records grants in the log, for deployments without a platform
// role system.
type LogRoles struct {
	log logger.Logger
}

// NewLogRoles creates a logging role manager.
func NewLogRoles(log logger.Logger) *LogRoles {
	if log == nil {
		log = logger.Named("roles")
	}
	return &LogRoles{log: log}
}

// Grant implements RoleManager.
func (r *LogRoles) Grant(ctx context.Context, player model.PlayerID, channelID string) error {
	r.log.Debug(ctx, "role granted",
		logger.String("player", string(player)), logger.String("channel", channelID))
	return nil
}

// Revoke implements RoleManager.
func (r *LogRoles) Revoke(ctx context.Context, player model.PlayerID, channelID string) error {
	r.log.Debug(ctx, "role revoked",
		logger.String("player", string(player)), logger.String("channel", channelID))
	return nil
}
