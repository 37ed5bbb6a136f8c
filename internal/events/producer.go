package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/freechat/session-go/internal/models"
)

// 事件类型
const (
	EventSessionCreated         = "session_created"
	EventSessionPromoted        = "session_promoted"
	EventSessionPromotionFailed = "session_promotion_failed"
	EventSessionDeleted         = "session_deleted"
)

// SessionEvent 会话生命周期事件
type SessionEvent struct {
	Type           string   `json:"type"`
	UserID         string   `json:"user_id"`
	SessionID      string   `json:"session_id,omitempty"`
	SessionIDs     []string `json:"session_ids,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	ModelCardID    *int     `json:"model_card_id,omitempty"`
	State          string   `json:"state,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

// Producer Kafka事件生产者
// 事件是分析流，发送失败只记录日志，不影响会话操作本身。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducer 创建Kafka事件生产者
func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("kafka event producer started",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))

	return &Producer{producer: producer, topic: topic, logger: logger}, nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

func (p *Producer) send(event *SessionEvent) {
	if p == nil || p.producer == nil {
		return
	}
	event.Timestamp = time.Now().UnixMilli()

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode session event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to send session event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}

	p.logger.Debug("session event sent",
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
}

// SessionCreated 会话创建事件
func (p *Producer) SessionCreated(userID string, sess *models.Session) {
	p.send(&SessionEvent{
		Type:        EventSessionCreated,
		UserID:      userID,
		SessionID:   sess.ID,
		ModelCardID: sess.ModelCardID,
		State:       string(sess.State),
	})
}

// SessionPromoted 草稿晋升成功事件
func (p *Producer) SessionPromoted(userID, sessionID, conversationID string) {
	p.send(&SessionEvent{
		Type:           EventSessionPromoted,
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: conversationID,
	})
}

// SessionPromotionFailed 草稿晋升失败事件
func (p *Producer) SessionPromotionFailed(userID, sessionID string) {
	p.send(&SessionEvent{
		Type:      EventSessionPromotionFailed,
		UserID:    userID,
		SessionID: sessionID,
	})
}

// SessionDeleted 会话删除事件
func (p *Producer) SessionDeleted(userID string, sessionIDs []string) {
	p.send(&SessionEvent{
		Type:       EventSessionDeleted,
		UserID:     userID,
		SessionIDs: sessionIDs,
	})
}
