package dialog

import (
	"github.com/fankam/depanneo/plugin/extractor"
	"github.com/fankam/depanneo/store"
)

// MergeSlots folds newly extracted values into the session slots. A value
// already captured is never changed by ordinary messages; only an explicit
// correction overwrites. This keeps a confirmed summary stable against the
// model re-reading earlier turns differently.
func MergeSlots(current store.Slots, extracted store.Slots, intent extractor.Intent) store.Slots {
	if intent == extractor.IntentCorrection {
		return overwriteNonEmpty(current, extracted)
	}
	return fillEmpty(current, extracted)
}

func fillEmpty(current, extracted store.Slots) store.Slots {
	if current.ServiceCategory == "" {
		current.ServiceCategory = extracted.ServiceCategory
	}
	if current.Location == "" {
		current.Location = extracted.Location
	}
	if current.Description == "" {
		current.Description = extracted.Description
	}
	if current.Urgency == "" {
		current.Urgency = extracted.Urgency
	}
	return current
}

func overwriteNonEmpty(current, extracted store.Slots) store.Slots {
	if extracted.ServiceCategory != "" {
		current.ServiceCategory = extracted.ServiceCategory
	}
	if extracted.Location != "" {
		current.Location = extracted.Location
	}
	if extracted.Description != "" {
		current.Description = extracted.Description
	}
	if extracted.Urgency != "" {
		current.Urgency = extracted.Urgency
	}
	return current
}
