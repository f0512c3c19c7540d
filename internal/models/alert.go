package models

import "time"

// AlertState 报警会话状态
type AlertState string

const (
	AlertStateIdle      AlertState = "idle"
	AlertStateAlerting  AlertState = "alerting"
	AlertStateSending   AlertState = "sending"
	AlertStateCancelled AlertState = "cancelled"
	AlertStateCompleted AlertState = "completed"
)

// OutcomeKind 报警会话结果
type OutcomeKind string

const (
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeSuccess   OutcomeKind = "success"
	OutcomePartial   OutcomeKind = "partial"
)

// AlertTrigger 触发来源
type AlertTrigger string

const (
	TriggerFall   AlertTrigger = "fall"
	TriggerManual AlertTrigger = "manual_test"
)

// FailedContact 发送失败的联系人
type FailedContact struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// AlertOutcome 一次报警会话的结构化结果
type AlertOutcome struct {
	SessionID    string          `json:"session_id"`
	Kind         OutcomeKind     `json:"outcome"`
	Successes    int             `json:"successes"`
	Total        int             `json:"total"`
	Failed       []FailedContact `json:"failed,omitempty"`
	Message      string          `json:"message"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Dismissed    bool            `json:"dismissed,omitempty"` // 外部强制关闭（非用户取消）
}

// AlertStatus 报警器当前状态快照
type AlertStatus struct {
	SessionID string       `json:"session_id,omitempty"`
	State     AlertState   `json:"state"`
	Countdown int          `json:"countdown"`
	Trigger   AlertTrigger `json:"trigger,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// AlertEvent 报警审计记录（对应 alert_events 表）
type AlertEvent struct {
	EventID     string       `json:"event_id" db:"event_id"`
	UserID      string       `json:"user_id" db:"user_id"`
	Trigger     AlertTrigger `json:"trigger" db:"trigger"`
	Outcome     OutcomeKind  `json:"outcome" db:"outcome"`
	Successes   int          `json:"successes" db:"successes"`
	Total       int          `json:"total" db:"total"`
	FailedData  string       `json:"failed_data" db:"failed_data"` // JSONB
	TriggeredAt time.Time    `json:"triggered_at" db:"triggered_at"`
	FinishedAt  time.Time    `json:"finished_at" db:"finished_at"`
}
