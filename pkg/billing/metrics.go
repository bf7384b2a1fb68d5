package billing

import "time"

// Metrics defines the interface for tracking payment reconciliation.
// All methods are optional - providers should gracefully handle nil metrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook delivery.
	// status: "success", "duplicate" or "error"
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration records how long it took to process a webhook.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: e.g. "auth_failed", "invalid_payload", "processing_error"
	RecordWebhookError(provider, errorType string)

	// RecordSubscriptionApplied records a subscription write with the tier that was written.
	// status: "success" or "error"
	RecordSubscriptionApplied(provider, tier, status string)

	// RecordOrder records an order write.
	RecordOrder(provider, paymentMethod, status string)

	// RecordPendingPaymentsCompleted records how many pending records a confirmation completed.
	RecordPendingPaymentsCompleted(provider string, count int)

	// RecordAPICall records an API call to the billing provider.
	// status: HTTP status code as string (e.g., "200", "404", "500")
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordSubscriptionApplied(_, _, _ string)                     {}
func (n *NoopMetrics) RecordOrder(_, _, _ string)                                   {}
func (n *NoopMetrics) RecordPendingPaymentsCompleted(_ string, _ int)               {}
func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
