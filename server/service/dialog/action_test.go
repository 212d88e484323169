package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fankam/depanneo/plugin/extractor"
	"github.com/fankam/depanneo/store"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		phase    store.ConversationPhase
		intent   extractor.Intent
		complete bool
		want     ActionCode
	}{
		{"greeting greets", store.PhaseGreeting, extractor.IntentGreeting, false, ActionGreet},
		{"greeting with partial request gathers", store.PhaseGreeting, extractor.IntentNewRequest, false, ActionAskMissingSlot},
		{"greeting with complete request creates directly", store.PhaseGreeting, extractor.IntentNewRequest, true, ActionCreateRequest},
		{"greeting answer with complete slots confirms", store.PhaseGreeting, extractor.IntentProvideInfo, true, ActionConfirmSummary},

		{"gathering keeps gathering", store.PhaseGatheringInfo, extractor.IntentProvideInfo, false, ActionAskMissingSlot},
		{"gathering complete confirms", store.PhaseGatheringInfo, extractor.IntentProvideInfo, true, ActionConfirmSummary},
		{"gathering correction re-gathers", store.PhaseGatheringInfo, extractor.IntentCorrection, false, ActionAskMissingSlot},

		{"confirming yes creates", store.PhaseConfirming, extractor.IntentConfirm, true, ActionCreateRequest},
		{"confirming yes but incomplete re-asks", store.PhaseConfirming, extractor.IntentConfirm, false, ActionAskMissingSlot},
		{"confirming no asks correction", store.PhaseConfirming, extractor.IntentDeny, true, ActionAskCorrection},
		{"confirming correction re-confirms", store.PhaseConfirming, extractor.IntentCorrection, true, ActionConfirmSummary},

		{"created duplicate create is absorbed", store.PhaseRequestCreated, extractor.IntentNewRequest, true, ActionCreateRequest},
		{"created correction modifies", store.PhaseRequestCreated, extractor.IntentCorrection, false, ActionModifyRequest},
		{"managing confirm shows detail", store.PhaseManagingRequest, extractor.IntentConfirm, false, ActionShowRequest},
		{"managing greeting greets", store.PhaseManagingRequest, extractor.IntentGreeting, false, ActionGreet},

		{"escalated stays escalated", store.PhaseEscalated, extractor.IntentNewRequest, true, ActionEscalateToHuman},
		{"escalated ignores confirm", store.PhaseEscalated, extractor.IntentConfirm, true, ActionEscalateToHuman},

		{"unclear falls back", store.PhaseGatheringInfo, extractor.IntentUnclear, false, ActionErrorFallback},
		{"deny outside confirming falls back", store.PhaseGreeting, extractor.IntentDeny, false, ActionErrorFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.phase, tt.intent, tt.complete))
		})
	}
}

func TestSelectManagementIntentsWinInEveryPhase(t *testing.T) {
	phases := []store.ConversationPhase{
		store.PhaseGreeting, store.PhaseGatheringInfo, store.PhaseConfirming,
		store.PhaseRequestCreated, store.PhaseManagingRequest, store.PhaseEscalated,
	}
	for _, phase := range phases {
		assert.Equal(t, ActionShowRequest, Select(phase, extractor.IntentStatusQuery, false), "phase %s", phase)
		assert.Equal(t, ActionListRequests, Select(phase, extractor.IntentListRequests, false), "phase %s", phase)
		assert.Equal(t, ActionCancelRequest, Select(phase, extractor.IntentCancelRequest, false), "phase %s", phase)
		assert.Equal(t, ActionModifyRequest, Select(phase, extractor.IntentModifyRequest, false), "phase %s", phase)
		assert.Equal(t, ActionEscalateToHuman, Select(phase, extractor.IntentHumanHandoff, false), "phase %s", phase)
	}
}
