package checkout

import "fmt"

// Stage is a step of the checkout wizard.
type Stage int

const (
	StageContact      Stage = 1
	StageDelivery     Stage = 2
	StagePayment      Stage = 3
	StageConfirmation Stage = 4
)

func (s Stage) String() string {
	switch s {
	case StageContact:
		return "contact"
	case StageDelivery:
		return "delivery"
	case StagePayment:
		return "payment"
	case StageConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) IsValid() bool {
	return s >= StageContact && s <= StageConfirmation
}

// Editable reports whether draft edits are accepted in this stage.
func (s Stage) Editable() bool {
	return s >= StageContact && s < StageConfirmation
}
