package testrabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// StartRabbitMQ starts a disposable RabbitMQ broker and returns its amqp:// URL.
func StartRabbitMQ(tb testing.TB) string {
	tb.Helper()

	ctx := context.Background()
	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-alpine")
	if err != nil {
		tb.Fatalf("start rabbitmq container: %v", err)
	}

	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			tb.Errorf("terminate rabbitmq container: %v", err)
		}
	})

	url, err := container.AmqpURL(ctx)
	if err != nil {
		tb.Fatalf("build rabbitmq url: %v", err)
	}
	return url
}
