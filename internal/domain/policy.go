package domain

import "time"

// RetryPolicy defines the retry budget and initial backoff for a priority tier.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

var retryPolicies = map[Priority]RetryPolicy{
	PriorityCritical: {MaxAttempts: 5, BaseBackoff: 2 * time.Minute},
	PriorityHigh:     {MaxAttempts: 4, BaseBackoff: 5 * time.Minute},
	PriorityMedium:   {MaxAttempts: 3, BaseBackoff: 10 * time.Minute},
	PriorityLow:      {MaxAttempts: 2, BaseBackoff: 15 * time.Minute},
}

// PolicyFor returns the retry policy for a priority. Unknown priorities fall
// back to the LOW tier so a corrupted row still drains instead of retrying
// forever.
func PolicyFor(priority Priority) RetryPolicy {
	if policy, ok := retryPolicies[priority]; ok {
		return policy
	}
	return retryPolicies[PriorityLow]
}

// BackoffDelay returns the delay before the given retry, where attemptNumber
// is the 1-based ordinal of the upcoming retry. The gap doubles with every
// attempt: base, 2*base, 4*base, ...
func BackoffDelay(priority Priority, attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := PolicyFor(priority).BaseBackoff
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
	}
	return delay
}

// NextRetryAt computes the next retry timestamp relative to now.
func NextRetryAt(priority Priority, attemptNumber int, now time.Time) time.Time {
	return now.Add(BackoffDelay(priority, attemptNumber))
}
