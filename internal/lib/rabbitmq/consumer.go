package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
)

// ErrDropMessage помечает сообщение, которое не имеет смысла возвращать в очередь.
var ErrDropMessage = errors.New("message dropped")

const defaultWorkers = 10

// Source — часть *amqp.Channel, нужная для чтения очереди.
type Source interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Handler обрабатывает тело одного сообщения.
type Handler func(ctx context.Context, body []byte) error

// ConsumeMessages читает очередь queue и обрабатывает сообщения не более чем в workers горутинах.
// Успешно обработанные сообщения подтверждаются, при ошибке сообщение возвращается в очередь,
// а при ErrDropMessage отбрасывается. Блокирует до отмены ctx или закрытия канала доставки
// и дожидается обработчиков, которые уже запущены.
func ConsumeMessages(ctx context.Context, src Source, queue string, workers int, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.ConsumeMessages"
	if workers < 1 {
		workers = defaultWorkers
	}

	deliveries, err := src.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("queue", queue))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to nack message", sl.Err(err))
				}
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				settle(ctx, d, handler, log)
			}(d)
		}
	}
}

func settle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrDropMessage):
		log.Warn("dropping message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("failed to handle message", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
