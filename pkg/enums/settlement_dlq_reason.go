package enums

type SettlementDLQReason string

const (
	SettlementDLQReasonUnknownStoreFailure SettlementDLQReason = "unknown_store_failure"
	SettlementDLQReasonUndecodable         SettlementDLQReason = "undecodable_message"
	SettlementDLQReasonInvalidEvent        SettlementDLQReason = "invalid_event"
)

var validSettlementDLQReasons = []SettlementDLQReason{
	SettlementDLQReasonUnknownStoreFailure,
	SettlementDLQReasonUndecodable,
	SettlementDLQReasonInvalidEvent,
}

func (r SettlementDLQReason) IsValid() bool {
	for _, candidate := range validSettlementDLQReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
