package session

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freechat/session-go/internal/models"
)

// DBStore Postgres会话存储
// 会话一行一条，整单用户事务性重写；展示缓存单独一张表，互不影响。
type DBStore struct {
	db *gorm.DB
}

// NewDBStore 创建Postgres会话存储
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return &DBStore{db: db}, nil
}

// LoadState 读取用户会话状态
func (s *DBStore) LoadState(ctx context.Context, userID string) (*State, error) {
	var records []models.SessionRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	st := &State{Sessions: make([]models.Session, 0, len(records))}
	for i := range records {
		sess, err := recordToSession(&records[i])
		if err != nil {
			return nil, err
		}
		st.Sessions = append(st.Sessions, *sess)
	}

	var pointer models.UserPointerRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pointer).Error
	if err == nil {
		st.CurrentID = pointer.CurrentSessionID
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load session pointer: %w", err)
	}

	return st, nil
}

// SaveState 写入用户会话状态
func (s *DBStore) SaveState(ctx context.Context, userID string, st *State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.SessionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear sessions: %w", err)
		}

		if len(st.Sessions) > 0 {
			records := make([]models.SessionRecord, 0, len(st.Sessions))
			for i := range st.Sessions {
				rec, err := sessionToRecord(userID, i, &st.Sessions[i])
				if err != nil {
					return err
				}
				records = append(records, *rec)
			}
			if err := tx.Create(&records).Error; err != nil {
				return fmt.Errorf("failed to save sessions: %w", err)
			}
		}

		pointer := models.UserPointerRecord{
			UserID:           userID,
			CurrentSessionID: st.CurrentID,
			UpdatedAt:        nowMillis(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(&pointer).Error; err != nil {
			return fmt.Errorf("failed to save session pointer: %w", err)
		}

		return nil
	})
}

// LoadDisplay 读取展示消息缓存
func (s *DBStore) LoadDisplay(ctx context.Context, userID string) ([]models.Message, error) {
	var record models.DisplayCacheRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load display cache: %w", err)
	}

	if record.Messages == "" {
		return nil, nil
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(record.Messages), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode display cache: %w", err)
	}
	return messages, nil
}

// SaveDisplay 写入展示消息缓存
func (s *DBStore) SaveDisplay(ctx context.Context, userID string, messages []models.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode display cache: %w", err)
	}

	record := models.DisplayCacheRecord{
		UserID:    userID,
		Messages:  string(data),
		UpdatedAt: nowMillis(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save display cache: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// recordToSession 持久化行转会话实体
func recordToSession(rec *models.SessionRecord) (*models.Session, error) {
	sess := &models.Session{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		ModelCardID:    rec.ModelCardID,
		Name:           rec.Name,
		State:          models.SessionState(rec.State),
		IsFavorited:    rec.IsFavorited,
		LastError:      rec.LastError,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}

	if rec.Messages != "" {
		if err := json.Unmarshal([]byte(rec.Messages), &sess.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages for session %s: %w", rec.ID, err)
		}
	}
	if rec.Params != "" {
		var params models.SessionParams
		if err := json.Unmarshal([]byte(rec.Params), &params); err != nil {
			return nil, fmt.Errorf("failed to decode params for session %s: %w", rec.ID, err)
		}
		sess.Params = &params
	}

	return sess, nil
}

// sessionToRecord 会话实体转持久化行
func sessionToRecord(userID string, position int, sess *models.Session) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{
		ID:             sess.ID,
		UserID:         userID,
		ConversationID: sess.ConversationID,
		ModelCardID:    sess.ModelCardID,
		Name:           sess.Name,
		State:          string(sess.State),
		IsFavorited:    sess.IsFavorited,
		LastError:      sess.LastError,
		Position:       position,
		CreatedAt:      sess.CreatedAt,
		UpdatedAt:      sess.UpdatedAt,
	}

	if sess.Messages != nil {
		data, err := json.Marshal(sess.Messages)
		if err != nil {
			return nil, fmt.Errorf("failed to encode messages for session %s: %w", sess.ID, err)
		}
		rec.Messages = string(data)
	}
	if sess.Params != nil {
		data, err := json.Marshal(sess.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params for session %s: %w", sess.ID, err)
		}
		rec.Params = string(data)
	}

	return rec, nil
}
