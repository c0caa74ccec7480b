package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
)

// Client enqueues ledger tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq client for redisOpts.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueIntercompanyCharges enqueues a charge batch for the worker.
func (c *Client) EnqueueIntercompanyCharges(ctx context.Context, batch intercompany.ChargeBatch) (*asynq.TaskInfo, error) {
	task, err := NewIntercompanyChargesTask(batch)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Dispatch hands a charge batch to the worker. A batch already queued for the
// same event is not an error.
func (c *Client) Dispatch(ctx context.Context, batch intercompany.ChargeBatch) error {
	_, err := c.EnqueueIntercompanyCharges(ctx, batch)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}
