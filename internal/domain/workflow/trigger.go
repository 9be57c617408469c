package workflow

// Trigger represents a workflow operation that can cause a state transition
type Trigger string

const (
	TriggerSubmit              Trigger = "submit"
	TriggerResubmit            Trigger = "resubmit"
	TriggerEndorseToAccounting Trigger = "endorse_to_accounting"
	TriggerReturnToHEI         Trigger = "return_to_hei"
	TriggerEndorseToCOA        Trigger = "endorse_to_coa"
	TriggerReturnToRC          Trigger = "return_to_rc"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
