// Package events carries job status and progress from background work to
// the front ends.
package events

import (
	"sync"

	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous: each
// subscriber receives events in publish order on its own goroutine.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its type.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case Status:
		event.Publish(b.dispatcher, e)
	case Progress:
		event.Publish(b.dispatcher, e)
	case Output:
		event.Publish(b.dispatcher, e)
	case Finished:
		event.Publish(b.dispatcher, e)
	}
}

// OnStatus subscribes fn to Status events and returns the unsubscribe func.
func (b *Bus) OnStatus(fn func(Status)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// OnProgress subscribes fn to Progress events.
func (b *Bus) OnProgress(fn func(Progress)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// OnOutput subscribes fn to Output events.
func (b *Bus) OnOutput(fn func(Output)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// OnFinished subscribes fn to Finished events.
func (b *Bus) OnFinished(fn func(Finished)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// Forward sends every event into ch, dropping events when ch is full.
// Finished is never dropped: its send waits for room until the returned
// func is called, which also removes all four subscriptions.
func (b *Bus) Forward(ch chan<- Event) func() {
	stop := make(chan struct{})
	send := func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
	unsubs := []func(){
		b.OnStatus(func(e Status) { send(e) }),
		b.OnProgress(func(e Progress) { send(e) }),
		b.OnOutput(func(e Output) { send(e) }),
		b.OnFinished(func(e Finished) {
			select {
			case ch <- e:
			case <-stop:
			}
		}),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			for _, u := range unsubs {
				u()
			}
		})
	}
}

// Job is a Bus bound to one job id.
type Job struct {
	ID  string
	bus *Bus
}

// Job returns a publisher that stamps id on every event.
func (b *Bus) Job(id string) *Job {
	return &Job{ID: id, bus: b}
}

// Status publishes a Status event.
func (j *Job) Status(stage Stage, msg string) {
	j.bus.Publish(Status{Job: j.ID, Stage: stage, Message: msg})
}

// Progress publishes a Progress event.
func (j *Job) Progress(done, total int64) {
	j.bus.Publish(Progress{Job: j.ID, Done: done, Total: total})
}

// Output publishes an Output event.
func (j *Job) Output(line string) {
	j.bus.Publish(Output{Job: j.ID, Line: line})
}

// Finish publishes the Finished event.
func (j *Job) Finish(err error) {
	j.bus.Publish(Finished{Job: j.ID, Err: err})
}
