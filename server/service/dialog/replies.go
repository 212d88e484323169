package dialog

import (
	"fmt"
	"strings"

	"github.com/fankam/depanneo/server/service/matching"
	"github.com/fankam/depanneo/store"
)

// Customer-facing reply templates. Replies are deterministic French
// templates rather than generated text so the engine stays predictable and
// works unchanged in degraded mode.

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
	if category == "" {
		return "?"
	}
	return category
}

var statusLabels = map[store.RequestStatus]string{
	store.RequestStatusPending:    "en attente d'un dépanneur",
	store.RequestStatusNotified:   "dépanneur contacté",
	store.RequestStatusAssigned:   "dépanneur confirmé",
	store.RequestStatusInProgress: "intervention en cours",
	store.RequestStatusCompleted:  "terminée",
	store.RequestStatusCancelled:  "annulée",
}

func statusLabel(status store.RequestStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

var slotQuestions = map[string]string{
	store.SlotServiceCategory: "De quel type de dépannage avez-vous besoin ? (plomberie, électricité, électroménager, serrurerie)",
	store.SlotLocation:        "Dans quel quartier êtes-vous ?",
	store.SlotDescription:     "Pouvez-vous décrire le problème en quelques mots ?",
}

var slotSuggestions = map[string][]string{
	store.SlotServiceCategory: {"Plomberie", "Électricité", "Électroménager", "Serrurerie"},
	store.SlotLocation:        {"Bonamoussadi", "Akwa", "Makepe"},
}

func replyGreet() string {
	return "Bonjour ! Je suis l'assistant Depanneo. Décrivez-moi votre panne et votre quartier, je vous trouve un dépanneur."
}

func replyAskSlot(slot string) string {
	if q, ok := slotQuestions[slot]; ok {
		return q
	}
	return "Pouvez-vous m'en dire plus sur votre demande ?"
}

func replySummary(slots store.Slots) string {
	var b strings.Builder
	b.WriteString("Je récapitule votre demande :\n")
	fmt.Fprintf(&b, "• Service : %s\n", categoryLabel(slots.ServiceCategory))
	fmt.Fprintf(&b, "• Quartier : %s\n", slots.Location)
	fmt.Fprintf(&b, "• Problème : %s\n", slots.Description)
	if slots.Urgency == "urgent" {
		b.WriteString("• Urgence : intervention urgente\n")
	}
	b.WriteString("C'est bien ça ?")
	return b.String()
}

func replyAskCorrection() string {
	return "D'accord, qu'est-ce que je dois corriger ? (le quartier, le problème, le type de service...)"
}

func replyCreated(req *store.ServiceRequest, providerName string) string {
	return fmt.Sprintf("C'est noté ! Votre demande %s est créée et %s a été prévenu. Vous recevrez une confirmation dès qu'il accepte.", req.UID, providerName)
}

func replyCreatedEmergency(req *store.ServiceRequest, contacts []matching.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Votre demande %s est créée, mais aucun dépanneur n'est disponible immédiatement.\n", req.UID)
	if len(contacts) > 0 {
		b.WriteString("Voici des artisans à appeler directement :\n")
		for i, c := range contacts {
			fmt.Fprintf(&b, "%d. %s (%s) — %s\n", i+1, c.Provider.Name, c.Provider.Zone, c.Provider.Phone)
		}
	}
	b.WriteString("Notre équipe suit votre demande.")
	return b.String()
}

func replyAlreadyOpen(req *store.ServiceRequest) string {
	return fmt.Sprintf("Vous avez déjà une demande en cours (%s, %s). Dites « annuler » pour l'annuler avant d'en créer une nouvelle.", req.UID, statusLabel(req.Status))
}

func replyDetail(req *store.ServiceRequest) string {
	return fmt.Sprintf("Demande %s — %s à %s : %s.", req.UID, categoryLabel(req.Category), req.Location, statusLabel(req.Status))
}

func replyNoOpenRequest() string {
	return "Vous n'avez aucune demande en cours. Décrivez-moi votre panne pour en créer une."
}

func replyList(requests []*store.ServiceRequest) string {
	if len(requests) == 0 {
		return replyNoOpenRequest()
	}
	var b strings.Builder
	b.WriteString("Vos demandes :\n")
	for _, r := range requests {
		fmt.Fprintf(&b, "• %s — %s (%s)\n", r.UID, categoryLabel(r.Category), statusLabel(r.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

func replyModified(req *store.ServiceRequest) string {
	return fmt.Sprintf("C'est mis à jour. %s", replyDetail(req))
}

func replyCancelled(req *store.ServiceRequest) string {
	return fmt.Sprintf("Votre demande %s est annulée. N'hésitez pas à revenir si besoin.", req.UID)
}

func replyEscalated() string {
	return "Je vous mets en relation avec un membre de notre équipe. Un agent va vous contacter rapidement."
}

func replyClarify(pendingSlot string) string {
	if pendingSlot != "" {
		return fmt.Sprintf("Désolé, je n'ai pas compris. %s", replyAskSlot(pendingSlot))
	}
	return "Désolé, je n'ai pas compris. Pouvez-vous reformuler ? Par exemple : « fuite d'eau à Bonamoussadi »."
}

// suggestionsFor returns the quick-reply chips for an action.
func suggestionsFor(action ActionCode, pendingSlot string) []string {
	switch action {
	case ActionConfirmSummary:
		return []string{"Oui", "Non"}
	case ActionAskMissingSlot:
		return slotSuggestions[pendingSlot]
	case ActionShowRequest, ActionCreateRequest:
		return []string{"Où en est ma demande ?", "Annuler"}
	case ActionGreet:
		return []string{"J'ai une fuite d'eau", "Panne de courant", "Frigo en panne"}
	}
	return nil
}
