package editor

import "log"

// Notifier is the editor's only feedback surface. Every failure path ends
// in one of these calls or an in-place validation error; nothing fails
// silently and nothing escalates past a notification.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the process log. UIs replace it with
// their toast surface.
type LogNotifier struct{}

func (LogNotifier) Info(msg string)  { log.Printf("editor: %s", msg) }
func (LogNotifier) Error(msg string) { log.Printf("editor: error: %s", msg) }
