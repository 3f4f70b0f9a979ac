package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gzn7264/ai-travel-planner/internal/remote"
	"github.com/gzn7264/ai-travel-planner/internal/session"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

// principalRemote sends every call to the server of the current principal
// with its key, so a login takes effect without rebuilding the engine.
type principalRemote struct {
	session *session.Session
	timeout time.Duration
}

func (r *principalRemote) client() (*remote.Client, error) {
	p, ok := r.session.CurrentPrincipal()
	if !ok {
		return nil, &remote.Error{Kind: remote.KindAuth, Op: "connect", Message: "not logged in"}
	}
	return remote.NewClient(p.ServerURL, p.APIKey, r.timeout), nil
}

func (r *principalRemote) Create(ctx context.Context, ref remote.Ref, localID string, payload json.RawMessage) (remote.Entity, error) {
	c, err := r.client()
	if err != nil {
		return remote.Entity{}, err
	}
	return c.Create(ctx, ref, localID, payload)
}

func (r *principalRemote) Update(ctx context.Context, ref remote.Ref, id string, payload json.RawMessage) (remote.Entity, error) {
	c, err := r.client()
	if err != nil {
		return remote.Entity{}, err
	}
	return c.Update(ctx, ref, id, payload)
}

func (r *principalRemote) Delete(ctx context.Context, ref remote.Ref, id string) error {
	c, err := r.client()
	if err != nil {
		return err
	}
	return c.Delete(ctx, ref, id)
}

func (r *principalRemote) List(ctx context.Context, ref remote.Ref) ([]remote.Entity, error) {
	c, err := r.client()
	if err != nil {
		return nil, err
	}
	return c.List(ctx, ref)
}

func healthProbe(sess *session.Session, timeout time.Duration) tpsync.Prober {
	return func(ctx context.Context) error {
		p, ok := sess.CurrentPrincipal()
		if !ok {
			return tpsync.ErrNoPrincipal
		}
		_, err := remote.NewClient(p.ServerURL, "", timeout).HealthCheck(ctx)
		return err
	}
}
