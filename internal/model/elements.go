package model

// ElementKey is a stable enumerated identifier for a decision element,
// independent of the display title the server catalogs it under. Payload
// builders key off ElementKey; the title mapping happens once, at the
// catalog-lookup boundary, so a server-side title rename breaks in exactly
// one place.
type ElementKey string

const (
	ElementProjectDetails       ElementKey = "project_details"
	ElementNEPAssistConfirmation ElementKey = "nepassist_confirmation"
	ElementIPaCConfirmation     ElementKey = "ipac_confirmation"
	ElementPermitNotes          ElementKey = "permit_notes"
	ElementCEReferences         ElementKey = "ce_references"
	ElementConditions           ElementKey = "conditions"
	ElementResourceNotes        ElementKey = "resource_notes"
)

// ElementOrder is the fixed builder-declaration order. Payload records are
// always produced in this order.
var ElementOrder = []ElementKey{
	ElementProjectDetails,
	ElementNEPAssistConfirmation,
	ElementIPaCConfirmation,
	ElementPermitNotes,
	ElementCEReferences,
	ElementConditions,
	ElementResourceNotes,
}

// elementTitles maps stable keys to the display titles the server-side
// catalog uses. This list is the one static contract shared with the
// backend; title drift between here and the decision_element table is the
// known failure mode the key indirection contains.
var elementTitles = map[ElementKey]string{
	ElementProjectDetails:        "Project Details",
	ElementNEPAssistConfirmation: "NEPA Assist Confirmation",
	ElementIPaCConfirmation:      "IPaC Confirmation",
	ElementPermitNotes:           "Permit Notes",
	ElementCEReferences:          "CE References",
	ElementConditions:            "Conditions",
	ElementResourceNotes:         "Resource Notes",
}

// Title returns the server-side display title for the key.
func (k ElementKey) Title() string {
	return elementTitles[k]
}

// ElementKeyForTitle resolves a display title back to its stable key.
// Unknown titles return ("", false); callers ignore them for forward
// compatibility with catalog additions this client does not interpret.
func ElementKeyForTitle(title string) (ElementKey, bool) {
	for k, t := range elementTitles {
		if t == title {
			return k, true
		}
	}
	return "", false
}
