package extractor

import "github.com/fankam/depanneo/plugin/llm"

// extractionSystemPrompt instructs the model to classify intent and pull
// slot values for a home-services conversation. Traffic is mostly French;
// slot values are returned verbatim except the category, which is mapped to
// the closed vocabulary.
const extractionSystemPrompt = `Tu analyses les messages d'un service de dépannage à domicile à Douala (plomberie, électricité, électroménager, serrurerie). Les clients écrivent en français, parfois en anglais.

Classe l'intention du message:
new_request: le client décrit un nouveau problème à réparer
provide_info: le client donne une information demandée (quartier, détail)
confirm: le client valide le récapitulatif
deny: le client refuse sans donner de nouvelle valeur
correction: le client corrige une information déjà donnée
status_query: le client demande où en est sa demande
modify_request: le client veut changer une demande existante
cancel_request: le client veut annuler sa demande
list_requests: le client veut voir ses demandes
greeting: simple salutation sans contenu
human_handoff: le client veut parler à une personne
unclear: impossible à déterminer

Extrais aussi les créneaux si présents:
service_category: plumbing | electrical | appliance_repair | locksmith
location: le quartier mentionné, tel quel
description: le problème décrit, tel quel
urgency: urgent | normal

Laisse vide tout créneau absent du message. Ne devine jamais.`

// extractionSchema constrains the structured output. The intent enum keeps
// the model inside the closed vocabulary.
var extractionSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]*llm.Schema{
		"primary_intent": {
			Type: "string",
			Enum: []string{
				"new_request", "provide_info", "confirm", "deny",
				"correction", "status_query", "modify_request",
				"cancel_request", "list_requests", "greeting",
				"human_handoff", "unclear",
			},
			Description: "The classified intent of the message",
		},
		"confidence": {
			Type:        "number",
			Description: "Confidence score between 0 and 1",
		},
		"slots": {
			Type: "object",
			Properties: map[string]*llm.Schema{
				"service_category": {Type: "string"},
				"location":         {Type: "string"},
				"description":      {Type: "string"},
				"urgency":          {Type: "string"},
			},
			Required:             []string{"service_category", "location", "description", "urgency"},
			AdditionalProperties: false,
		},
	},
	Required:             []string{"primary_intent", "confidence", "slots"},
	AdditionalProperties: false,
}
