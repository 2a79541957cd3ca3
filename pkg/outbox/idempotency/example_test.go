package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_Process() {
	ctx := context.Background()
	manager, _ := NewManager(newMemoryStore(), 7*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	deliver := func() {
		skipped, err := manager.Process(ctx, "notification-worker", eventID, func(context.Context) error {
			fmt.Println("notify owner")
			return nil
		})
		fmt.Println("skipped:", skipped, "err:", err)
	}
	deliver()
	deliver()
	// Output:
	// notify owner
	// skipped: false err: <nil>
	// skipped: true err: <nil>
}
