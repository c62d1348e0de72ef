package orders

import (
	"context"
	"fmt"
	"time"
)

// Post-commit task names, used as log and metric labels.
const (
	TaskInventoryDecrement = "inventory.decrement"
	TaskInventoryRestock   = "inventory.restock"
	TaskCouponConsume      = "coupon.consume"
	TaskNotifyCustomer     = "notify.customer"
	TaskNotifyOperators    = "notify.operators"
	TaskNotifyCancelled    = "notify.cancelled"
)

type postCommitTask struct {
	name string
	run  func(ctx context.Context) error
}

// runPostCommit executes tasks in order after the order row is durable. A
// failing or panicking task never stops the ones after it.
func (s *service) runPostCommit(ctx context.Context, tasks []postCommitTask) {
	for _, task := range tasks {
		started := time.Now()
		err := runIsolated(ctx, task)
		s.metrics.PostCommitTask(task.name, time.Since(started), err != nil)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "task", task.name), "order.post_commit.failed", err)
		}
	}
}

func runIsolated(ctx context.Context, task postCommitTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", task.name, r)
		}
	}()
	return task.run(ctx)
}
