package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeStart   jobType = "start"
	jobTypeAnalyze jobType = "analyze"
)

type queuePayload struct {
	ID      string          `json:"id"`
	Kind    jobType         `json:"kind"`
	Analyze AnalysisRequest `json:"analyze,omitempty"`
}

func encodePayload(kind jobType, jobID string, analyze AnalysisRequest) (queuePayload, string, error) {
	payload := queuePayload{
		ID:      jobID,
		Kind:    kind,
		Analyze: analyze,
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("triage: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
