// Package audit provides the compliance trail of lifecycle-relevant actions.
// It is a log, not a control mechanism: no operation's correctness depends on
// an audit write succeeding, and failures never reach the caller.
package audit

import "time"

// Action is the closed vocabulary of auditable actions.
type Action string

const (
	ActionLogin               Action = "LOGIN"
	ActionLogout              Action = "LOGOUT"
	ActionViewApplication     Action = "VIEW_APPLICATION"
	ActionCreateApplication   Action = "CREATE_APPLICATION"
	ActionUpdateStatus        Action = "UPDATE_STATUS"
	ActionDownloadPDF         Action = "DOWNLOAD_PDF"
	ActionExportData          Action = "EXPORT_DATA"
	ActionDeleteAccount       Action = "DELETE_ACCOUNT"
	ActionLinkExternalAccount Action = "LINK_EXTERNAL_ACCOUNT"
)

var validActions = map[Action]bool{
	ActionLogin:               true,
	ActionLogout:              true,
	ActionViewApplication:     true,
	ActionCreateApplication:   true,
	ActionUpdateStatus:        true,
	ActionDownloadPDF:         true,
	ActionExportData:          true,
	ActionDeleteAccount:       true,
	ActionLinkExternalAccount: true,
}

// IsValid checks the action against the closed enum.
func (a Action) IsValid() bool { return validActions[a] }

func (a Action) String() string { return string(a) }

// Entry is one write-only audit record. Entries are appended, never read by
// the core, never updated.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Action     Action    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	UserAgent  string    `json:"user_agent,omitempty"`
}
