package enums

// InventoryUsageReason records why an inventory ledger entry was written.
type InventoryUsageReason string

const (
	UsageReasonOrderAcceptance  InventoryUsageReason = "order_acceptance"
	UsageReasonProductionOutput InventoryUsageReason = "production_output"
	UsageReasonManualAdjustment InventoryUsageReason = "manual_adjustment"
)

var validInventoryUsageReasons = []InventoryUsageReason{
	UsageReasonOrderAcceptance,
	UsageReasonProductionOutput,
	UsageReasonManualAdjustment,
}

func (r InventoryUsageReason) IsValid() bool {
	for _, candidate := range validInventoryUsageReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
