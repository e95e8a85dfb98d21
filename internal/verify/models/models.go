// Package models defines the public verification result and the internal
// query log for the verification gateway.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	id "careledger/pkg/domain"
)

// QueryType classifies what the caller supplied as the lookup key.
type QueryType string

const (
	QueryByRegistryID  QueryType = "registry_id"
	QueryByName        QueryType = "name"
	QueryByCertificate QueryType = "certificate_number"
)

// QueryOutcome classifies how a verification query resolved. Ambiguous is a
// distinct internal outcome even though the public response for it is
// indistinguishable from no_match.
type QueryOutcome string

const (
	OutcomeMatch     QueryOutcome = "match"
	OutcomeNoMatch   QueryOutcome = "no_match"
	OutcomeAmbiguous QueryOutcome = "ambiguous"
	OutcomeError     QueryOutcome = "error"
)

// VerificationResult is the public response shape. It deliberately exposes
// only what a printed certificate already shows; internal IDs, versions,
// actor identities and reasons never leave the gateway.
type VerificationResult struct {
	Found bool `json:"found"`

	RegistryCode   string     `json:"registry_id,omitempty"`
	FullName       string     `json:"name,omitempty"`
	Kind           string     `json:"registrant_type,omitempty"`
	Category       string     `json:"category,omitempty"`
	CurrentStatus  string     `json:"current_status,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	Affiliation    string     `json:"affiliation,omitempty"`
}

// NotFound is the uniform negative response. Unknown codes, revoked lookups
// that fail, and ambiguous name matches all produce exactly this shape so
// callers cannot probe the registry's contents.
func NotFound() *VerificationResult {
	return &VerificationResult{Found: false}
}

// CachedVerification is the cache envelope for code lookups. The matched
// registrant identity rides along so a cache hit writes the same query log
// detail as a store hit; it is never part of the public response.
type CachedVerification struct {
	Result      *VerificationResult `json:"result"`
	MatchedKind id.RegistrantKind   `json:"matched_kind"`
	MatchedID   uuid.UUID           `json:"matched_id"`
}

// VerificationQuery is one internal log record. Every public lookup writes
// exactly one, whatever the outcome.
type VerificationQuery struct {
	ID id.QueryLogID `json:"id"`

	QueryType  QueryType    `json:"query_type"`
	QueryValue string       `json:"query_value"`
	Outcome    QueryOutcome `json:"outcome"`

	MatchedKind *id.RegistrantKind `json:"matched_kind,omitempty"`
	MatchedID   *uuid.UUID         `json:"matched_id,omitempty"`

	ClientIP     string `json:"client_ip"`
	UserAgentRaw string `json:"user_agent_raw"`
	Browser      string `json:"browser"`
	OS           string `json:"os"`
	Bot          bool   `json:"bot"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewVerificationQuery builds a log record, deriving browser, OS and bot
// fields from the raw User-Agent.
func NewVerificationQuery(queryType QueryType, queryValue string, clientIP, userAgentRaw string, now time.Time) *VerificationQuery {
	q := &VerificationQuery{
		ID:           id.QueryLogID(uuid.New()),
		QueryType:    queryType,
		QueryValue:   queryValue,
		Outcome:      OutcomeNoMatch,
		ClientIP:     clientIP,
		UserAgentRaw: userAgentRaw,
		Browser:      "unknown",
		OS:           "unknown",
		OccurredAt:   now,
	}
	if userAgentRaw != "" {
		ua := useragent.New(userAgentRaw)
		if browser, _ := ua.Browser(); browser != "" {
			q.Browser = strings.ToLower(browser)
		}
		if os := ua.OS(); os != "" {
			q.OS = strings.ToLower(os)
		}
		q.Bot = ua.Bot()
	}
	return q
}

// RecordMatch marks the query as matched against one registrant.
func (q *VerificationQuery) RecordMatch(kind id.RegistrantKind, matchedID uuid.UUID) {
	q.Outcome = OutcomeMatch
	k := kind
	q.MatchedKind = &k
	m := matchedID
	q.MatchedID = &m
}

// RecordOutcome sets a non-match outcome.
func (q *VerificationQuery) RecordOutcome(outcome QueryOutcome) {
	q.Outcome = outcome
}
