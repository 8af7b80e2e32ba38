package resilient

import (
	"strings"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/samber/lo"
)

// Classification is the broad kind of a failure returned by an endpoint.
type Classification string

const (
	ClassPermanent    Classification = "permanent"
	ClassTransient    Classification = "transient"
	ClassCanceled     Classification = "canceled"
	ClassUnclassified Classification = "unclassified"
)

// Classify maps an error onto the failure taxonomy.
func Classify(err error) Classification {
	switch {
	case llm.IsCanceled(err):
		return ClassCanceled
	case llm.IsPermanent(err):
		return ClassPermanent
	case llm.IsTransient(err):
		return ClassTransient
	default:
		return ClassUnclassified
	}
}

// DefaultFallbackKeywords returns the message fragments that mark a transient
// failure as sustained unavailability rather than simple flakiness.
func DefaultFallbackKeywords() []string {
	return []string{
		"overloaded",
		"busy",
		"rate_limit",
		"throttled",
		"quota",
		"organization",
	}
}

// FallbackRule decides when to abandon the primary endpoint and which endpoint to use instead.
type FallbackRule struct {
	keywords []string
	fallback *model.Endpoint
}

// NewFallbackRule creates a rule switching to fallback (nil for none).
// With no keywords the defaults are used. Keywords are matched case-insensitively.
func NewFallbackRule(fallback *model.Endpoint, keywords ...string) FallbackRule {
	normalized := lo.Uniq(lo.FilterMap(keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	}))
	if len(normalized) == 0 {
		normalized = DefaultFallbackKeywords()
	}
	return FallbackRule{
		keywords: normalized,
		fallback: fallback,
	}
}

// Fallback returns the fallback endpoint, or nil if none is configured.
func (r FallbackRule) Fallback() *model.Endpoint {
	return r.fallback
}

// Keywords returns a copy of the keyword set.
func (r FallbackRule) Keywords() []string {
	return append([]string(nil), r.keywords...)
}

// ShouldFallback reports whether err should end attempts against the current
// endpoint in favour of the fallback. Permanent and unrecognized failures always
// do; transient failures only when their message names a keyword. Cancellation
// never does.
func (r FallbackRule) ShouldFallback(err error) bool {
	switch Classify(err) {
	case ClassCanceled:
		return false
	case ClassPermanent:
		return true
	case ClassTransient:
		keywords := r.keywords
		if len(keywords) == 0 {
			keywords = DefaultFallbackKeywords()
		}
		msg := strings.ToLower(err.Error())
		return lo.SomeBy(keywords, func(k string) bool {
			return strings.Contains(msg, k)
		})
	default:
		return err != nil
	}
}
