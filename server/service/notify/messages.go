package notify

import (
	"fmt"
	"strings"

	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/store"
)

// categoryLabels maps the closed category vocabulary to customer-facing
// French labels.
var categoryLabels = map[string]string{
	"plumbing":         "plomberie",
	"electrical":       "électricité",
	"appliance_repair": "électroménager",
	"locksmith":        "serrurerie",
}

func categoryLabel(category string) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return category
}

// ProviderMessage is the dispatch text sent to a matched provider.
func ProviderMessage(req *store.ServiceRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nouvelle demande %s (%s) à %s.\n", req.UID, categoryLabel(req.Category), req.Location)
	fmt.Fprintf(&b, "Problème: %s\n", req.Description)
	if req.Urgency == "urgent" {
		b.WriteString("⚠ Intervention urgente demandée.\n")
	}
	b.WriteString("Répondez OUI pour accepter la mission.")
	return b.String()
}

// RequesterConfirmation tells the requester their request went out.
func RequesterConfirmation(req *store.ServiceRequest, providerName string) string {
	return fmt.Sprintf("Votre demande %s est transmise à %s. Vous serez prévenu dès qu'il confirme.", req.UID, providerName)
}

// RequesterUpdate is a generic status line, used when a requester-directed
// message has to be regenerated after a restart.
func RequesterUpdate(req *store.ServiceRequest) string {
	return fmt.Sprintf("Mise à jour de votre demande %s: statut %s.", req.UID, req.Status)
}

// FallbackMessage is the single message sent to the requester when automatic
// notification is exhausted. It carries direct contacts so the requester is
// never left without a way forward.
func FallbackMessage(req *store.ServiceRequest, contacts []matching.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nous n'avons pas pu joindre automatiquement un dépanneur pour votre demande %s.\n", req.UID)
	if len(contacts) == 0 {
		b.WriteString("Notre équipe prend le relais et vous recontacte rapidement.")
		return b.String()
	}
	b.WriteString("Voici des artisans à contacter directement:\n")
	for i, c := range contacts {
		fmt.Fprintf(&b, "%d. %s (%s) — %s\n", i+1, c.Provider.Name, c.Provider.Zone, c.Provider.Phone)
	}
	b.WriteString("Notre équipe reste informée de votre demande.")
	return b.String()
}
