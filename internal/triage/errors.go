package triage

import (
	"context"
	"errors"
	"strings"
)

// FailureKind classifies an upstream AI-service failure.
type FailureKind string

const (
	FailureMissingCredentials FailureKind = "missing_credentials"
	FailureQuotaExceeded      FailureKind = "quota_exceeded"
	FailureNetwork            FailureKind = "network"
	FailureRateLimited        FailureKind = "rate_limited"
	FailureUnavailable        FailureKind = "service_unavailable"
	FailureInvalidRequest     FailureKind = "invalid_request"
	FailureUnknown            FailureKind = "unknown"
)

// Failure is the classified form of an AI-service error, paired with the
// canned reply shown to the user. Fallback replies always err toward advising
// professional care rather than silently failing.
type Failure struct {
	Kind      FailureKind
	Message   string
	Urgency   Urgency
	Retryable bool
}

const fallbackSuffix = " If your symptoms are serious or getting worse, please consult a doctor or visit a clinic rather than waiting."

var failureMessages = map[FailureKind]Failure{
	FailureMissingCredentials: {
		Kind:      FailureMissingCredentials,
		Message:   "The symptom checker is not fully configured right now." + fallbackSuffix,
		Retryable: false,
	},
	FailureQuotaExceeded: {
		Kind:      FailureQuotaExceeded,
		Message:   "The symptom checker has reached its usage limit for now." + fallbackSuffix,
		Retryable: false,
	},
	FailureNetwork: {
		Kind:      FailureNetwork,
		Message:   "I couldn't reach the analysis service. Please check your connection and try again." + fallbackSuffix,
		Retryable: true,
	},
	FailureRateLimited: {
		Kind:      FailureRateLimited,
		Message:   "Too many requests right now. Please wait a moment and try again." + fallbackSuffix,
		Retryable: true,
	},
	FailureUnavailable: {
		Kind:      FailureUnavailable,
		Message:   "The analysis service is temporarily unavailable. Please try again shortly." + fallbackSuffix,
		Retryable: true,
	},
	FailureInvalidRequest: {
		Kind:      FailureInvalidRequest,
		Message:   "I couldn't process that message. Please try rephrasing your symptoms." + fallbackSuffix,
		Retryable: false,
	},
	FailureUnknown: {
		Kind:      FailureUnknown,
		Message:   "Something went wrong while analyzing your symptoms." + fallbackSuffix,
		Retryable: true,
	},
}

// ClassifyFailure maps an upstream error onto the failure taxonomy. Every
// fallback carries a fixed medium urgency: without analysis we can't rule out
// something worth seeing a doctor about.
func ClassifyFailure(err error) Failure {
	f := failureMessages[classifyKind(err)]
	f.Urgency = UrgencyMedium
	return f
}

func classifyKind(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case contains(msg, "api key", "credential", "unauthenticated", "permission denied"):
		return FailureMissingCredentials
	case contains(msg, "quota", "billing"):
		return FailureQuotaExceeded
	case contains(msg, "rate limit", "too many requests", "429", "resource exhausted", "resource_exhausted"):
		return FailureRateLimited
	case contains(msg, "unavailable", "503", "overloaded", "internal error", "500"):
		return FailureUnavailable
	case contains(msg, "connection", "network", "timeout", "deadline", "dial tcp", "no such host"):
		return FailureNetwork
	case contains(msg, "invalid", "bad request", "400", "unsupported role"):
		return FailureInvalidRequest
	default:
		return FailureUnknown
	}
}

func contains(msg string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
