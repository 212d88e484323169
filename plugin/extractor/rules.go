package extractor

import (
	"strings"

	"github.com/fankam/depanneo/store"
)

// RuleExtractor is the deterministic keyword layer. It understands the
// French (and some English) phrasing common in Douala chat traffic and runs
// in microseconds, so it executes on every message.
type RuleExtractor struct{}

// NewRuleExtractor creates a new rule extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Service categories recognized by the marketplace.
const (
	CategoryPlumbing        = "plumbing"
	CategoryElectrical      = "electrical"
	CategoryApplianceRepair = "appliance_repair"
	CategoryLocksmith       = "locksmith"
)

var categoryKeywords = map[string][]string{
	CategoryPlumbing: {
		"plombier", "plomberie", "fuite", "robinet", "tuyau", "canalisation",
		"toilette", "wc bouché", "chauffe-eau", "chauffe eau", "siphon", "leak", "plumber",
	},
	CategoryElectrical: {
		"électricien", "electricien", "électricité", "electricite", "courant",
		"coupure", "prise", "disjoncteur", "court-circuit", "court circuit",
		"ampoule", "câblage", "cablage", "electrician", "power cut",
	},
	CategoryApplianceRepair: {
		"frigo", "réfrigérateur", "refrigerateur", "congélateur", "congelateur",
		"climatiseur", "clim ", "machine à laver", "machine a laver", "lave-linge",
		"four", "cuisinière", "cuisiniere", "ventilateur", "fridge", "freezer",
	},
	CategoryLocksmith: {
		"serrurier", "serrure", "clé perdue", "cle perdue", "clés", "cles",
		"porte bloquée", "porte bloquee", "porte claquée", "porte claquee",
		"verrou", "cadenas", "locksmith", "locked out",
	},
}

// Douala neighbourhoods recognized as service zones.
var knownZones = []string{
	"Bonamoussadi", "Akwa", "Bonapriso", "Deido", "Makepe", "Bali",
	"Bepanda", "New Bell", "Logbessou", "Kotto", "Ndokoti", "Bonaberi",
	"Logpom", "Cite des Palmiers",
}

var urgentKeywords = []string{
	"urgent", "urgence", "vite", "rapidement", "tout de suite",
	"immédiatement", "immediatement", "maintenant", "emergency", "asap",
}

// Problem phrasing that signals a service request even without a category
// keyword.
var problemKeywords = []string{
	"panne", "cassé", "casse", "cassée", "cassee", "marche pas",
	"ne marche plus", "fonctionne plus", "problème", "probleme", "réparer",
	"reparer", "dépanner", "depanner", "besoin d'un", "besoin d'une",
	"cherche un", "cherche une", "broken", "not working",
}

var correctionMarkers = []string{
	"plutôt", "plutot", "en fait", "je voulais dire", "pas à", "pas a",
	"non c'est", "pardon", "je me suis trompé", "je me suis trompee",
	"correction", "actually", "i meant",
}

var confirmKeywords = []string{
	"oui", "ok", "d'accord", "daccord", "c'est ça", "c'est ca", "c'est bon",
	"exact", "parfait", "confirme", "je confirme", "yes", "correct",
}

var denyKeywords = []string{
	"non", "pas du tout", "no", "nope",
}

var cancelKeywords = []string{
	"annuler", "annule", "annulation", "laisse tomber", "laissez tomber",
	"plus besoin", "cancel",
}

var statusKeywords = []string{
	"où en est", "ou en est", "statut", "état de ma demande", "etat de ma demande",
	"des nouvelles", "status", "quand est-ce qu'il arrive", "quand arrive",
}

var listKeywords = []string{
	"mes demandes", "mes requêtes", "mes requetes", "toutes mes demandes",
	"my requests", "liste de mes",
}

var modifyKeywords = []string{
	"modifier", "changer ma demande", "changer l'adresse", "changer l'heure",
	"mettre à jour", "mettre a jour", "update my request",
}

var humanKeywords = []string{
	"agent", "humain", "conseiller", "parler à quelqu'un", "parler a quelqu'un",
	"une personne", "vrai personne", "human", "operator",
}

var greetingKeywords = []string{
	"bonjour", "bonsoir", "salut", "bjr", "hello", "hi ", "good morning",
}

// Extract runs the keyword rules over a single message.
func (r *RuleExtractor) Extract(message string) *Result {
	lower := strings.ToLower(strings.TrimSpace(message))
	slots := r.extractSlots(message, lower)
	intent, confidence := r.classify(lower, slots)

	return &Result{
		Primary:    intent,
		Slots:      slots,
		Confidence: confidence,
		Method:     "rules",
	}
}

func (r *RuleExtractor) extractSlots(original, lower string) store.Slots {
	slots := store.Slots{}

	for category, keywords := range categoryKeywords {
		if containsAny(lower, keywords) {
			slots.ServiceCategory = category
			break
		}
	}

	for _, zone := range knownZones {
		if strings.Contains(lower, strings.ToLower(zone)) {
			slots.Location = zone
			break
		}
	}

	if containsAny(lower, urgentKeywords) {
		slots.Urgency = "urgent"
	}

	// A message that names a category or a concrete problem carries enough
	// detail to stand as the description.
	if slots.ServiceCategory != "" || containsAny(lower, problemKeywords) {
		slots.Description = strings.TrimSpace(original)
	}

	return slots
}

func (r *RuleExtractor) classify(lower string, slots store.Slots) (Intent, float64) {
	// Corrections look like denials followed by new values, so they are
	// checked before the plain deny keywords.
	if containsAny(lower, correctionMarkers) && slots.FilledCount() > 0 {
		return IntentCorrection, 0.85
	}
	if containsAny(lower, cancelKeywords) {
		return IntentCancelRequest, 0.9
	}
	if containsAny(lower, humanKeywords) {
		return IntentHumanHandoff, 0.9
	}
	if containsAny(lower, listKeywords) {
		return IntentListRequests, 0.9
	}
	if containsAny(lower, statusKeywords) {
		return IntentStatusQuery, 0.85
	}
	if containsAny(lower, modifyKeywords) {
		return IntentModifyRequest, 0.85
	}
	if slots.ServiceCategory != "" || containsAny(lower, problemKeywords) {
		confidence := 0.75
		if slots.ServiceCategory != "" && slots.Location != "" {
			confidence = 0.9
		}
		return IntentNewRequest, confidence
	}
	if matchesShortKeyword(lower, denyKeywords) {
		return IntentDeny, 0.85
	}
	if matchesShortKeyword(lower, confirmKeywords) {
		return IntentConfirm, 0.85
	}
	if containsAny(lower, greetingKeywords) {
		return IntentGreeting, 0.9
	}
	if slots.FilledCount() > 0 {
		return IntentProvideInfo, 0.8
	}
	return IntentUnclear, 0
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// matchesShortKeyword guards confirm/deny words against substring noise:
// "oui" must be the message (or lead it), not a fragment of a longer word.
func matchesShortKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if s == kw || strings.HasPrefix(s, kw+" ") || strings.HasPrefix(s, kw+",") || strings.HasPrefix(s, kw+".") {
			return true
		}
	}
	return false
}

// normalizeCategory maps free-form category strings from the model onto the
// closed category vocabulary.
func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case CategoryPlumbing, CategoryElectrical, CategoryApplianceRepair, CategoryLocksmith:
		return s
	case "plomberie", "plumber":
		return CategoryPlumbing
	case "électricité", "electricite", "electricity", "electrician":
		return CategoryElectrical
	case "électroménager", "electromenager", "appliance", "appliances":
		return CategoryApplianceRepair
	case "serrurerie", "locks":
		return CategoryLocksmith
	case "":
		return ""
	default:
		return ""
	}
}
