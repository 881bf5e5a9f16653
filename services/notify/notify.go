package notify

import (
	"sync"
	"time"

	"github.com/meghashyamc/churnsearch/logger"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindDanger  Kind = "danger"
)

type Toast struct {
	Kind  Kind      `json:"kind"`
	Title string    `json:"title,omitempty"`
	Text  string    `json:"text,omitempty"`
	At    time.Time `json:"at"`
}

// Notifier shows transient, user-visible messages.
type Notifier interface {
	Notify(toast Toast)
}

// Recorder keeps every toast in memory and fans them out to listeners.
type Recorder struct {
	mu        sync.Mutex
	toasts    []Toast
	listeners []func(Toast)
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(toast Toast) {
	if toast.At.IsZero() {
		toast.At = time.Now()
	}

	r.mu.Lock()
	r.toasts = append(r.toasts, toast)
	listeners := append([]func(Toast){}, r.listeners...)
	r.mu.Unlock()

	for _, listener := range listeners {
		listener(toast)
	}
}

// Listen registers fn for every toast notified after the call.
func (r *Recorder) Listen(fn func(Toast)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Count returns how many toasts of kind were notified.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, toast := range r.toasts {
		if toast.Kind == kind {
			count++
		}
	}
	return count
}

// LogNotifier writes toasts to the structured log.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(logger logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(toast Toast) {
	switch toast.Kind {
	case KindDanger:
		l.logger.Error(toast.Title, "text", toast.Text)
	case KindWarning:
		l.logger.Warn(toast.Title, "text", toast.Text)
	default:
		l.logger.Info(toast.Title, "text", toast.Text)
	}
}

// Multi notifies every notifier in order.
type Multi []Notifier

func (m Multi) Notify(toast Toast) {
	for _, notifier := range m {
		notifier.Notify(toast)
	}
}
