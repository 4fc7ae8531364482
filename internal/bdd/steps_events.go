package bdd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	registryevents "github.com/chirino/social-service/internal/registry/events"
	"github.com/chirino/social-service/internal/testutil/cucumber"
	"github.com/cucumber/godog"
	goredis "github.com/redis/go-redis/v9"
)

const eventWaitTimeout = 10 * time.Second

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		redisURL, _ := s.Suite.Extra["redisURL"].(string)
		if redisURL == "" {
			return
		}
		prefix, _ := s.Suite.Extra["redisChannelPrefix"].(string)
		e := &eventSteps{s: s, redisURL: redisURL, prefix: prefix}
		ctx.Before(e.subscribe)
		ctx.After(e.unsubscribe)
		ctx.Step(`^an? "([^"]*)" event should be published by "([^"]*)"$`, e.anEventShouldBePublishedBy)
		ctx.Step(`^no "([^"]*)" event should be published$`, e.noEventShouldBePublished)
	})
}

// eventSteps listens on the redis event channels for the lifetime of a scenario.
type eventSteps struct {
	s        *cucumber.TestScenario
	redisURL string
	prefix   string

	client *goredis.Client
	sub    *goredis.PubSub

	mu       sync.Mutex
	received []registryevents.Event
}

func (e *eventSteps) subscribe(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	opts, err := goredis.ParseURL(e.redisURL)
	if err != nil {
		return ctx, err
	}
	e.client = goredis.NewClient(opts)
	e.sub = e.client.PSubscribe(ctx, e.prefix+".*")
	// Wait for the subscription confirmation so no event is missed.
	if _, err := e.sub.Receive(ctx); err != nil {
		return ctx, fmt.Errorf("subscribe to events: %w", err)
	}
	ch := e.sub.Channel()
	go func() {
		for msg := range ch {
			var event registryevents.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			e.mu.Lock()
			e.received = append(e.received, event)
			e.mu.Unlock()
		}
	}()
	return ctx, nil
}

func (e *eventSteps) unsubscribe(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
	if e.sub != nil {
		_ = e.sub.Close()
	}
	if e.client != nil {
		_ = e.client.Close()
	}
	return ctx, err
}

func (e *eventSteps) find(eventType, actor string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, event := range e.received {
		if event.Type == eventType && (actor == "" || event.Actor == actor) {
			return true
		}
	}
	return false
}

func (e *eventSteps) anEventShouldBePublishedBy(eventType, actor string) error {
	deadline := time.Now().Add(eventWaitTimeout)
	for time.Now().Before(deadline) {
		if e.find(eventType, actor) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Errorf("no %q event by %q was published, received: %+v", eventType, actor, e.received)
}

func (e *eventSteps) noEventShouldBePublished(eventType string) error {
	// Give in-flight publishes a moment to arrive.
	time.Sleep(500 * time.Millisecond)
	if e.find(eventType, "") {
		return fmt.Errorf("unexpected %q event was published", eventType)
	}
	return nil
}
