// Package notify delivers fired reminders over email, sms, push and in-app channels.
//
// Delivery never returns an error to the caller: every outcome is a Result so
// the scheduler can record it and move on to the next trigger.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"task-reminder/internal/model"
)

// Message is one delivery request.
type Message struct {
	Channel   model.Channel
	Recipient model.User
	Title     string
	Body      string
	Metadata  model.NotificationMeta
}

// Result is the outcome of a delivery attempt. Reason is set when Success is false.
type Result struct {
	Success bool
	Reason  string
}

func Delivered() Result { return Result{Success: true} }

func Failed(reason string) Result { return Result{Reason: reason} }

// Dispatcher sends a message and reports the outcome.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) Result
}

// Sender delivers on a single channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// ErrNoAddress is returned by senders when the recipient has no address on their channel.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Router fans messages out to per-channel senders and honors user preferences.
type Router struct {
	mu      sync.RWMutex
	senders map[model.Channel]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[model.Channel]Sender)}
}

// Register installs s for ch, replacing any previous sender.
func (r *Router) Register(ch model.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

func (r *Router) sender(ch model.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[ch]
	return s, ok
}

// Send delivers msg. A sender that outlives ctx is abandoned and reported as failed.
func (r *Router) Send(ctx context.Context, msg Message) Result {
	if !msg.Recipient.ChannelEnabled(msg.Channel) {
		return Failed(fmt.Sprintf("%s notifications disabled by user", msg.Channel))
	}
	s, ok := r.sender(msg.Channel)
	if !ok {
		return Failed(fmt.Sprintf("channel %s not configured", msg.Channel))
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Printf("[error] %s sender panic: %v", msg.Channel, p)
				done <- fmt.Errorf("sender panic: %v", p)
			}
		}()
		done <- s.Send(ctx, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return Failed(err.Error())
		}
		return Delivered()
	case <-ctx.Done():
		return Failed(fmt.Sprintf("delivery aborted: %v", ctx.Err()))
	}
}

// InApp delivers by doing nothing: the stored notification is what the user reads.
func InApp() Sender {
	return SenderFunc(func(context.Context, Message) error { return nil })
}

// Log writes messages to the process log. It stands in for channels without a
// real transport such as email and sms.
func Log(prefix string) Sender {
	return SenderFunc(func(_ context.Context, msg Message) error {
		log.Printf("[info] %s to user %d: %s: %s", prefix, msg.Recipient.ID, msg.Title, msg.Body)
		return nil
	})
}
