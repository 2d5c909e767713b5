package queue

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shelfline-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskRewardDiscountIssue 奖励折扣发放任务
	TaskRewardDiscountIssue = constants.TaskRewardDiscountIssue
	// TaskRewardDiscountCleanup 奖励折扣清理任务
	TaskRewardDiscountCleanup = constants.TaskRewardDiscountCleanup
	// TaskRewardEventPublish 奖励生命周期事件发布任务
	TaskRewardEventPublish = constants.TaskRewardEventPublish
)

var kindToTask = map[string]string{
	constants.OutboxKindDiscountIssue:   TaskRewardDiscountIssue,
	constants.OutboxKindDiscountCleanup: TaskRewardDiscountCleanup,
	constants.OutboxKindRewardEvent:     TaskRewardEventPublish,
}

// OutboxTaskPayload 任务载荷，只携带 outbox 消息ID，实际内容以数据库为准
type OutboxTaskPayload struct {
	MessageID string `json:"message_id"`
}

// TaskTypeForKind 返回 outbox 消息类型对应的任务类型
func TaskTypeForKind(kind string) (string, bool) {
	taskType, ok := kindToTask[kind]
	return taskType, ok
}

// NewOutboxTask 创建 outbox 投递任务
func NewOutboxTask(kind string, payload OutboxTaskPayload) (*asynq.Task, error) {
	taskType, ok := TaskTypeForKind(kind)
	if !ok {
		return nil, fmt.Errorf("unknown outbox kind %q", kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// ParseOutboxTask 解析任务载荷
func ParseOutboxTask(task *asynq.Task) (OutboxTaskPayload, error) {
	var payload OutboxTaskPayload
	if task == nil {
		return payload, fmt.Errorf("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// TaskTypes 全部 outbox 任务类型，按名称排序
func TaskTypes() []string {
	types := make([]string, 0, len(kindToTask))
	for _, taskType := range kindToTask {
		types = append(types, taskType)
	}
	sort.Strings(types)
	return types
}
