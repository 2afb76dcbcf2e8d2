package mapper

import (
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// nexusStatusTable is the total, explicit mapping from Nexus-native order
// statuses into the canonical vocabulary. pending_cancel maps to PENDING on
// purpose: a cancel that the venue acknowledged but has not finalized is not
// a distinct local state.
var nexusStatusTable = map[string]string{
	"pending_new":      model.OrderStatusPending,
	"pending_cancel":   model.OrderStatusPending,
	"accepted":         model.OrderStatusSubmitted,
	"new":              model.OrderStatusSubmitted,
	"open":             model.OrderStatusSubmitted,
	"partially_filled": model.OrderStatusPartialFill,
	"filled":           model.OrderStatusFilled,
	"done":             model.OrderStatusFilled,
	"canceled":         model.OrderStatusCancelled,
	"cancelled":        model.OrderStatusCancelled,
	"rejected":         model.OrderStatusRejected,
	"expired":          model.OrderStatusExpired,
}

// MapNexusStatus translates a vendor status string. A status missing from the
// table maps to PENDING and logs one warning carrying the original vendor
// string, so nothing is silently dropped and nothing more specific is
// invented.
func MapNexusStatus(vendorStatus string) string {
	if canonical, ok := nexusStatusTable[vendorStatus]; ok {
		return canonical
	}

	logger.WithFields(logger.Fields{
		"mapper":        "MapNexusStatus",
		"vendor_status": vendorStatus,
	}).Warn("unmapped Nexus order status, defaulting to PENDING")

	return model.OrderStatusPending
}
