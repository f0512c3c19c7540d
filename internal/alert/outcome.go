package alert

import (
	"fmt"
	"strings"

	"alfred/internal/models"
)

// NotificationText 发送给紧急联系人的固定文本
const NotificationText = "Alfred emergency alert: a fall was detected. Please check on me immediately."

const cancelledMessage = "Emergency SMS dispatch cancelled."

// buildCompletedOutcome 汇总发送结果
func buildCompletedOutcome(sessionID string, successes, total int, failed []models.FailedContact) models.AlertOutcome {
	out := models.AlertOutcome{
		SessionID: sessionID,
		Successes: successes,
		Total:     total,
		Failed:    failed,
	}
	if successes == total {
		out.Kind = models.OutcomeSuccess
		out.Message = fmt.Sprintf("Emergency SMS sent successfully to all %d contacts!", total)
		return out
	}

	out.Kind = models.OutcomePartial
	out.Message = fmt.Sprintf("Emergency SMS sent to %d of %d contacts.", successes, total)
	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, fmt.Sprintf("%s (%s)", f.Name, f.PhoneNumber))
		}
		out.ErrorMessage = fmt.Sprintf("Failed to send to: %s. Please verify the phone numbers.", strings.Join(names, ", "))
	}
	return out
}

func buildCancelledOutcome(sessionID string, total int, dismissed bool) models.AlertOutcome {
	return models.AlertOutcome{
		SessionID: sessionID,
		Kind:      models.OutcomeCancelled,
		Total:     total,
		Message:   cancelledMessage,
		Dismissed: dismissed,
	}
}
