package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventHandler は 1 件のイベントを返信に変換します。
type EventHandler interface {
	Handle(ctx context.Context, ev Event) Reply
}

// Responder は返信を送信者に届けます。
type Responder interface {
	Respond(ctx context.Context, externalID string, reply Reply) error
}

// Inbox は外部 ID ごとのキューです。同じ外部 ID のイベントは到着順に 1 件ずつ処理され、
// 異なる外部 ID のイベントは並行に処理されます。
// 受け付けたイベントは Submit の ctx がキャンセルされた後も最後まで処理されます。
type Inbox struct {
	handler   EventHandler
	responder Responder
	timeout   time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	queues map[string][]Event
	wg     sync.WaitGroup
}

// NewInbox は Inbox を生成します。timeout が正の値なら 1 イベントの処理と返信をその値で打ち切ります。
func NewInbox(handler EventHandler, responder Responder, timeout time.Duration, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		handler:   handler,
		responder: responder,
		timeout:   timeout,
		logger:    logger.Named("inbox"),
		queues:    make(map[string][]Event),
	}
}

// Submit はイベントを送信者のキューに積みます。ブロックしません。
// 呼び出し順が同じ外部 ID の処理順になるため、単一のゴルーチンから呼んでください。
func (b *Inbox) Submit(ctx context.Context, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue, running := b.queues[ev.ExternalID]
	b.queues[ev.ExternalID] = append(queue, ev)
	if running {
		return
	}

	b.wg.Add(1)
	go b.drain(context.WithoutCancel(ctx), ev.ExternalID)
}

// Pending はキューに残っているイベント数を返します。
func (b *Inbox) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, q := range b.queues {
		n += len(q)
	}
	return n
}

// Wait は処理中のイベントがすべて終わるまで待ちます。
func (b *Inbox) Wait() {
	b.wg.Wait()
}

func (b *Inbox) drain(ctx context.Context, externalID string) {
	defer b.wg.Done()

	for {
		b.mu.Lock()
		queue := b.queues[externalID]
		if len(queue) == 0 {
			delete(b.queues, externalID)
			b.mu.Unlock()
			return
		}
		ev := queue[0]
		b.mu.Unlock()

		b.process(ctx, ev)

		b.mu.Lock()
		b.queues[externalID] = b.queues[externalID][1:]
		b.mu.Unlock()
	}
}

func (b *Inbox) process(ctx context.Context, ev Event) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("external_id", ev.ExternalID),
				zap.String("kind", string(ev.Kind)),
				zap.Any("panic", r),
			)
			b.respond(ctx, ev, Reply{Text: msgUnavailable})
		}
	}()

	reply := b.handler.Handle(ctx, ev)
	if reply.Text == "" {
		return
	}
	b.respond(ctx, ev, reply)
}

func (b *Inbox) respond(ctx context.Context, ev Event, reply Reply) {
	if err := b.responder.Respond(ctx, ev.ExternalID, reply); err != nil {
		b.logger.Warn("reply delivery failed",
			zap.String("external_id", ev.ExternalID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
