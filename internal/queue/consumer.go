// Package queue принимает запросы на истории из топика Kafka.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/IBM/sarama"

	"github.com/ivlev/story2video/internal/config"
)

// MessageHandler обрабатывает значение одного сообщения. mark == false
// оставляет сообщение незакоммиченным, и оно придёт снова.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (mark bool, err error)
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: group, handler: handler, topic: cfg.Topic, groupID: cfg.GroupID}, nil
}

// Run читает до отмены ctx и заново входит в группу после каждой
// ребалансировки.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			log.Printf("[!] Kafka: %v", err)
		}
	}()
	log.Printf("[*] Kafka: группа %s, топик %s", c.groupID, c.topic)

	h := &groupHandler{handler: c.handler}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Printf("[!] Kafka: ошибка чтения: %v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler MessageHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			mark, err := h.handler.HandleMessage(session.Context(), msg.Value)
			if err != nil {
				log.Printf("[!] Kafka: сообщение %d/%d: %v", msg.Partition, msg.Offset, err)
			}
			if mark {
				session.MarkMessage(msg, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedHandler декодирует JSON в T, затем проверяет и обрабатывает.
// Нечитаемые и невалидные сообщения помечаются, если задан AlwaysMark.
type TypedHandler[T any] struct {
	Validate   func(msg *T) error
	Process    func(ctx context.Context, msg *T) error
	AlwaysMark bool
}

func (h *TypedHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("[!] Kafka: неверное сообщение: %v", err)
		return h.AlwaysMark, nil
	}
	if h.Validate != nil {
		if err := h.Validate(&msg); err != nil {
			log.Printf("[!] Kafka: сообщение отклонено: %v", err)
			return h.AlwaysMark, nil
		}
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
