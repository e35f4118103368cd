package models

// statusTransitions maps each key status to the statuses reachable from it.
// DELETED is terminal; reactivation (back to ACTIVE) is the only way out of
// SOLD, EXTENDED_TEST_DRIVE and SERVICE_LOANER.
var statusTransitions = map[string][]string{
	KeyStatusActive:            {KeyStatusSold, KeyStatusExtendedTestDrive, KeyStatusServiceLoaner, KeyStatusDeleted},
	KeyStatusSold:              {KeyStatusActive},
	KeyStatusExtendedTestDrive: {KeyStatusActive},
	KeyStatusServiceLoaner:     {KeyStatusActive},
	KeyStatusDeleted:           {},
}

// dealerStatuses lists the statuses a dealer type may use at all.
var dealerStatuses = map[string][]string{
	DealerTypeAuto: {KeyStatusActive, KeyStatusSold, KeyStatusExtendedTestDrive, KeyStatusServiceLoaner, KeyStatusDeleted},
	DealerTypeRV:   {KeyStatusActive, KeyStatusSold, KeyStatusDeleted},
}

// dealerReasons lists the checkout reasons a dealer type may use.
// SERVICE is AUTO-only and always requires a location.
var dealerReasons = map[string][]string{
	DealerTypeAuto: {ReasonTestDrive, ReasonService, ReasonMove, ReasonMiscellaneous},
	DealerTypeRV:   {ReasonTestDrive, ReasonMove, ReasonMiscellaneous},
}

// CanTransition reports whether the from → to status pair is legal,
// independent of dealer type and of the open-session guard.
func CanTransition(from, to string) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusLegalForDealer reports whether the dealer type may use the status.
func StatusLegalForDealer(dealerType, status string) bool {
	for _, s := range dealerStatuses[dealerType] {
		if s == status {
			return true
		}
	}
	return false
}

// ReasonLegalForDealer reports whether the dealer type may use the checkout reason.
func ReasonLegalForDealer(dealerType, reason string) bool {
	for _, r := range dealerReasons[dealerType] {
		if r == reason {
			return true
		}
	}
	return false
}

// ReasonRequiresLocation reports whether a checkout with this reason must
// name a location instead of defaulting.
func ReasonRequiresLocation(reason string) bool {
	return reason == ReasonService
}

func ValidStatus(s string) bool {
	_, ok := statusTransitions[s]
	return ok
}

func ValidReason(r string) bool {
	switch r {
	case ReasonTestDrive, ReasonService, ReasonMove, ReasonMiscellaneous:
		return true
	}
	return false
}

func ValidCategory(c string) bool {
	return c == CategoryNew || c == CategoryUsed
}

func ValidDealerType(t string) bool {
	return t == DealerTypeAuto || t == DealerTypeRV
}

func ValidPDIStatus(s string) bool {
	switch s {
	case PDINotYet, PDIInProgress, PDIFinished:
		return true
	}
	return false
}
