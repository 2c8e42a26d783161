package vectorindex

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultRecreateDelay = 15 * time.Second
	DefaultPollInterval  = time.Second
)

// Provisioner makes sure the index described by a Spec exists before the
// first upsert or query.
type Provisioner struct {
	Admin Admin
	Log   *zap.Logger

	// RecreateDelay is waited after deleting a mismatched index so the
	// backend can propagate the deletion.
	RecreateDelay time.Duration

	// PollInterval spaces DescribeIndex calls while waiting for readiness.
	PollInterval time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewProvisioner creates a provisioner with the default delays
func NewProvisioner(admin Admin, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}

	return &Provisioner{
		Admin:         admin,
		Log:           log,
		RecreateDelay: DefaultRecreateDelay,
		PollInterval:  DefaultPollInterval,
		sleep:         sleepContext,
	}
}

// Provision lists the indexes and reconciles spec.Name:
//   - absent: created with the spec's dimension, metric and placement
//   - present with another dimension: deleted, then recreated after RecreateDelay
//   - present with the same dimension: left alone
//
// It then waits until the index reports ready and returns a handle to it.
// Deleting discards every vector stored in the index.
func (p *Provisioner) Provision(ctx context.Context, spec Spec) (Index, error) {
	log := p.Log.With(
		zap.String("index", spec.Name),
		zap.Int("dimension", spec.Dimension),
	)

	exists, err := p.exists(ctx, spec.Name)
	if err != nil {
		return nil, err
	}

	if exists {
		desc, err := p.Admin.DescribeIndex(ctx, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", spec.Name, err)
		}

		if desc.Dimension != spec.Dimension {
			log.Warn("recreating index, all stored vectors will be lost",
				zap.Int("current_dimension", desc.Dimension))

			if err := p.Admin.DeleteIndex(ctx, spec.Name); err != nil {
				return nil, fmt.Errorf("failed to delete index %s: %w", spec.Name, err)
			}

			if err := p.sleep(ctx, p.RecreateDelay); err != nil {
				return nil, err
			}

			exists, err = p.exists(ctx, spec.Name)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("index %s still exists %s after deletion", spec.Name, p.RecreateDelay)
			}
		}
	}

	if !exists {
		if err := p.Admin.CreateIndex(ctx, spec); err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", spec.Name, err)
		}
		log.Info("index created",
			zap.String("metric", string(spec.Metric)),
			zap.String("cloud", spec.Cloud),
			zap.String("region", spec.Region))
	}

	if err := p.waitReady(ctx, spec.Name); err != nil {
		return nil, err
	}

	return p.Admin.Index(ctx, spec.Name)
}

func (p *Provisioner) exists(ctx context.Context, name string) (bool, error) {
	names, err := p.Admin.ListIndexes(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list indexes: %w", err)
	}
	return slices.Contains(names, name), nil
}

// waitReady polls until the index is ready. The bound is the context.
func (p *Provisioner) waitReady(ctx context.Context, name string) error {
	for {
		desc, err := p.Admin.DescribeIndex(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to describe index %s: %w", name, err)
		}
		if desc.Ready {
			return nil
		}

		p.Log.Debug("waiting for index", zap.String("index", name))

		if err := p.sleep(ctx, p.PollInterval); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIndexNotReady, name, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
