package session

import (
	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/models"
)

// SessionTransition 状态转换定义
type SessionTransition struct {
	To models.SessionState
}

// 状态转换规则
// 晋升是单向的：active之后永远不会回到draft，error可以重试回promoting。
var sessionTransitions = map[models.SessionState][]SessionTransition{
	models.SessionStateDraft: {
		{To: models.SessionStatePromoting},
	},
	models.SessionStatePromoting: {
		{To: models.SessionStateActive},
		{To: models.SessionStateError},
	},
	models.SessionStateError: {
		{To: models.SessionStatePromoting},
	},
}

// CanTransition 检查是否可以进行状态转换
func CanTransition(from, to models.SessionState) bool {
	transitions, exists := sessionTransitions[from]
	if !exists {
		return false
	}

	for _, transition := range transitions {
		if transition.To == to {
			return true
		}
	}
	return false
}

// transition 执行状态转换，非法转换返回InvalidState错误
func transition(sess *models.Session, to models.SessionState) error {
	if !CanTransition(sess.State, to) {
		return errors.NewInvalidStateError(string(sess.State), string(to))
	}
	sess.State = to
	return nil
}
