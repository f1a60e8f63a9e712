// Package events provides the progress event bus.
//
// The download manager publishes task lifecycle events and periodic speed
// samples; observers such as the TUI, the WebSocket stream and the CLI
// printer subscribe:
//
//	sub := bus.Subscribe()
//	defer sub.Close()
//	for e := range sub.C() {
//	    switch e.Type {
//	    case events.TaskProgress, events.TaskTerminal:
//	        view[e.ChapterID] = *e.Task // overwrite by id
//	    case events.Speed:
//	        fmt.Println(e.Speed)
//	    }
//	}
//
// Delivery is at-least-once and ordered per task. A subscriber may see the
// latest snapshot of a task twice (once from replay, once live); snapshots
// are idempotent so this is harmless.
package events
