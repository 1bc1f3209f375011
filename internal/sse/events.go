package sse

import "github.com/starford/vizbase/internal/models"

// Event types.
const (
	TypeVerificationPassed = "verification.passed"
	TypeVerificationFailed = "verification.failed"
	TypeBaselineCreated    = "baseline.created"
	TypeBaselineUpdated    = "baseline.updated"
	TypeBaselineDeleted    = "baseline.deleted"
	// TypeCatalogUpdated tells dashboards to refetch the baseline list.
	TypeCatalogUpdated = "baselines.updated"
)

var baselineEventTypes = map[string]string{
	"created": TypeBaselineCreated,
	"updated": TypeBaselineUpdated,
	"deleted": TypeBaselineDeleted,
}

// BaselineChange is the payload of baseline.* events.
type BaselineChange struct {
	Kind  string `json:"kind"`
	Group string `json:"group"`
	Name  string `json:"name"`
	Path  string `json:"path"`
}

// PublishVerification broadcasts the outcome of one verification run.
func (b *Broker) PublishVerification(v models.Verification) {
	typ := TypeVerificationPassed
	if !v.Matched {
		typ = TypeVerificationFailed
	}
	b.Publish(Event{Type: typ, Data: v})
}

// PublishBaselineEvent publishes a baseline change (kind is "created",
// "updated" or "deleted") and a throttled baselines.updated event. Paths
// outside the Baselines tree are ignored.
func (b *Broker) PublishBaselineEvent(kind, path string) {
	key, ok := models.KeyFromBaselinePath(path)
	if !ok || b.closed.Load() {
		return
	}
	select {
	case b.baselineEventCh <- BaselineChange{Kind: kind, Group: key.Group, Name: key.Name, Path: path}:
	case <-b.stopped:
	}
}
