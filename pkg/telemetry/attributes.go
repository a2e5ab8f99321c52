// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration and structured logging
// for role dispatch and interactions.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for DCI telemetry.
const (
	// Dispatch attributes
	AttrReceiverType = "dci.receiver.type"
	AttrReceiverID   = "dci.receiver.id"
	AttrMethod       = "dci.method"
	AttrCapability   = "dci.capability"
	AttrProvider     = "dci.provider"
	AttrArgCount     = "dci.args.count"
	AttrCacheHit     = "dci.cache.hit"
	AttrOutcome      = "dci.outcome" // "ok", "structural", "domain", "error"

	// Interaction attributes
	AttrInteractionID = "dci.interaction.id"
	AttrUseCase       = "dci.usecase"
	AttrParticipants  = "dci.participants.count"
	AttrInitiator     = "dci.initiator.type"

	// Error attributes
	AttrErrorCode     = "dci.error.code"
	AttrErrorCategory = "dci.error.category"
	AttrDomainKind    = "dci.domain.kind"
)

// Outcome values recorded on spans and metrics.
const (
	OutcomeOK         = "ok"
	OutcomeStructural = "structural"
	OutcomeDomain     = "domain"
	OutcomeUsage      = "usage"
	OutcomeError      = "error"
)

// DispatchAttributes returns attributes for a role dispatch span.
func DispatchAttributes(receiverType, method string, argCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrReceiverType, receiverType),
		attribute.String(AttrMethod, method),
		attribute.Int(AttrArgCount, argCount),
	}
}

// ResolutionAttributes returns attributes describing a resolved role method.
func ResolutionAttributes(capability, provider string, cacheHit bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrCacheHit, cacheHit),
	}
	if capability != "" {
		attrs = append(attrs, attribute.String(AttrCapability, capability))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrProvider, provider))
	}
	return attrs
}

// InteractionAttributes returns attributes for an interaction span.
func InteractionAttributes(interactionID, useCase, initiator string, participants int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrInteractionID, interactionID),
		attribute.String(AttrUseCase, useCase),
		attribute.Int(AttrParticipants, participants),
	}
	if initiator != "" {
		attrs = append(attrs, attribute.String(AttrInitiator, initiator))
	}
	return attrs
}

// ErrorAttributes returns attributes describing a failed call.
func ErrorAttributes(code, category, domainKind string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if code != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, code))
	}
	if category != "" {
		attrs = append(attrs, attribute.String(AttrErrorCategory, category))
	}
	if domainKind != "" {
		attrs = append(attrs, attribute.String(AttrDomainKind, domainKind))
	}
	return attrs
}

func attributeOutcome(err error) attribute.KeyValue {
	return attribute.String(AttrOutcome, OutcomeOf(err))
}
