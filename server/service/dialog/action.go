// Package dialog is the conversation engine: it turns an extracted intent
// plus the session state into exactly one action, executes it, and advances
// the session phase. Action selection is a pure lookup so the same inputs
// always produce the same action.
package dialog

import (
	"github.com/fankam/depanneo/plugin/extractor"
	"github.com/fankam/depanneo/store"
)

// ActionCode is the closed vocabulary of engine actions.
type ActionCode string

const (
	ActionGreet           ActionCode = "GREET"
	ActionAskMissingSlot  ActionCode = "ASK_MISSING_SLOT"
	ActionAskCorrection   ActionCode = "ASK_CORRECTION"
	ActionConfirmSummary  ActionCode = "CONFIRM_SUMMARY"
	ActionCreateRequest   ActionCode = "CREATE_REQUEST"
	ActionListRequests    ActionCode = "LIST_REQUESTS"
	ActionShowRequest     ActionCode = "SHOW_REQUEST_DETAIL"
	ActionModifyRequest   ActionCode = "MODIFY_REQUEST"
	ActionCancelRequest   ActionCode = "CANCEL_REQUEST"
	ActionEscalateToHuman ActionCode = "ESCALATE_TO_HUMAN"
	ActionErrorFallback   ActionCode = "ERROR_FALLBACK"
)

// managementActions maps the intents that operate on existing requests.
// They win in every phase so a user can always ask about or cancel their
// request, whatever the conversation was doing.
var managementActions = map[extractor.Intent]ActionCode{
	extractor.IntentStatusQuery:   ActionShowRequest,
	extractor.IntentListRequests:  ActionListRequests,
	extractor.IntentCancelRequest: ActionCancelRequest,
	extractor.IntentModifyRequest: ActionModifyRequest,
	extractor.IntentHumanHandoff:  ActionEscalateToHuman,
}

// Select maps (phase, intent, slot completeness) to one action. Unknown
// combinations land on ERROR_FALLBACK rather than guessing.
func Select(phase store.ConversationPhase, intent extractor.Intent, complete bool) ActionCode {
	if action, ok := managementActions[intent]; ok {
		return action
	}

	switch phase {
	case store.PhaseGreeting:
		switch intent {
		case extractor.IntentGreeting:
			return ActionGreet
		case extractor.IntentNewRequest:
			// An opening message carrying every required slot skips the
			// confirmation round; gathered flows still confirm.
			if complete {
				return ActionCreateRequest
			}
			return ActionAskMissingSlot
		case extractor.IntentProvideInfo, extractor.IntentCorrection:
			return gatherOrConfirm(complete)
		}

	case store.PhaseGatheringInfo:
		switch intent {
		case extractor.IntentNewRequest, extractor.IntentProvideInfo,
			extractor.IntentCorrection, extractor.IntentGreeting:
			return gatherOrConfirm(complete)
		}

	case store.PhaseConfirming:
		switch intent {
		case extractor.IntentConfirm:
			if complete {
				return ActionCreateRequest
			}
			return ActionAskMissingSlot
		case extractor.IntentDeny:
			return ActionAskCorrection
		case extractor.IntentCorrection, extractor.IntentProvideInfo, extractor.IntentNewRequest:
			return gatherOrConfirm(complete)
		}

	case store.PhaseRequestCreated, store.PhaseManagingRequest:
		switch intent {
		case extractor.IntentNewRequest:
			// The idempotent create resolves this to the existing open
			// request.
			return ActionCreateRequest
		case extractor.IntentCorrection:
			return ActionModifyRequest
		case extractor.IntentConfirm, extractor.IntentProvideInfo:
			return ActionShowRequest
		case extractor.IntentGreeting:
			return ActionGreet
		}

	case store.PhaseEscalated:
		// A human owns the conversation now; the engine only repeats the
		// escalation notice.
		return ActionEscalateToHuman
	}

	return ActionErrorFallback
}

func gatherOrConfirm(complete bool) ActionCode {
	if complete {
		return ActionConfirmSummary
	}
	return ActionAskMissingSlot
}
