package mailer

import (
	"fmt"

	"lifecert/internal/application"
)

// CertificateMessage builds the SPARSH transmission mail for an attested
// application. The subject line format is what the SPARSH intake desk keys
// on, so it must stay stable.
func CertificateMessage(app *application.Application, to string, certificatePDF []byte) Message {
	rank := app.Rank
	if rank == "" {
		rank = "Rank N/A"
	}
	subject := fmt.Sprintf("Annual Identification - %s %s - SPARSH PPO No %s", rank, app.PensionerName, app.PPONumber)

	body := fmt.Sprintf(`Dear SPARSH Team,

Please find my Annual Life Certificate (ALC) attached for the year.

My details are as follows:
Name: %s
Rank: %s
PPO Number: %s
Service Number: %s

Please acknowledge the receipt and acceptance of this certificate.

Thank you,
%s
(Submitted securely via Sparsh Overseas Digital Portal)`,
		app.PensionerName, orNA(app.Rank), app.PPONumber, app.ServiceNumber, app.PensionerName)

	return Message{
		To:      to,
		Subject: subject,
		Body:    body,
		Attachments: []Attachment{{
			Filename: fmt.Sprintf("ALC_%s.pdf", app.ID),
			MIMEType: "application/pdf",
			Data:     certificatePDF,
		}},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
