package notification

import (
	"fmt"

	"lifecert/internal/application"
	"lifecert/pkg/domain"
)

// Message is a title/body pair for a status-change notification.
type Message struct {
	Title string
	Body  string
}

// MessageFor returns the user-facing text for a status change.
func MessageFor(status application.Status, id domain.ApplicationID) Message {
	short := id.Short()
	switch status {
	case application.StatusAttested:
		return Message{
			Title: "Certificate Attested",
			Body:  fmt.Sprintf("Good news! Your application (%s...) has been attested by the Notary.", short),
		}
	case application.StatusRejected:
		return Message{
			Title: "Application Rejected",
			Body:  fmt.Sprintf("Attention: Your application (%s...) was returned by the Notary. Please check remarks.", short),
		}
	case application.StatusSentToSparsh:
		return Message{
			Title: "Sent to SPARSH",
			Body:  fmt.Sprintf("Success! Your certificate (%s...) has been emailed to SPARSH.", short),
		}
	case application.StatusSubmitted:
		return Message{
			Title: "New Submission",
			Body:  fmt.Sprintf("A new application (%s...) has been submitted for review.", short),
		}
	default:
		return Message{
			Title: "Status Updated",
			Body:  fmt.Sprintf("Application (%s...) status changed to %s.", short, status),
		}
	}
}
