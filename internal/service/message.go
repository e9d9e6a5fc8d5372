package service

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/eorimag/internal/model"
)

func writeApplicant(b *strings.Builder, label string, rec model.OrderRecord) {
	fmt.Fprintf(b, "Serviciu: %s (%s)\n", label, rec.ServiceKey)
	fmt.Fprintf(b, "Nume: %s\n", rec.FullName)
	if rec.Company != "" {
		fmt.Fprintf(b, "Companie: %s\n", rec.Company)
	}
	fmt.Fprintf(b, "Email: %s\n", rec.Email)
	fmt.Fprintf(b, "Telefon: %s\n", rec.Phone)
	fmt.Fprintf(b, "CNP/CUI: %s\n", rec.NationalID)
	if rec.Notes != "" {
		fmt.Fprintf(b, "Observații: %s\n", rec.Notes)
	}
	if len(rec.Files) > 0 {
		fmt.Fprintf(b, "Fișiere: %s\n", strings.Join(rec.Files, ", "))
	}
}

func submissionText(label string, rec model.OrderRecord) string {
	var b strings.Builder
	b.WriteString("Solicitare nouă primită. Plata nu a fost încă confirmată.\n\n")
	fmt.Fprintf(&b, "Data: %s\n", rec.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	writeApplicant(&b, label, rec)
	return b.String()
}

func paymentText(label string, rec model.OrderRecord, ev *model.PaymentEvent) string {
	var b strings.Builder
	b.WriteString("Plata a fost confirmată pentru solicitarea de mai jos.\n\n")
	fmt.Fprintf(&b, "Sesiune: %s\n", ev.SessionID)
	if ev.AmountMinor > 0 {
		fmt.Fprintf(&b, "Sumă: %d.%02d %s\n", ev.AmountMinor/100, ev.AmountMinor%100, strings.ToUpper(ev.Currency))
	}
	writeApplicant(&b, label, rec)
	return b.String()
}
