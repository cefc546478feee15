package memory

import "github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"

// EngagementLevel is a derived tier computed from behavior metrics.
type EngagementLevel string

const (
	EngagementNew      EngagementLevel = "new_user"
	EngagementModerate EngagementLevel = "moderate"
	EngagementEngaged  EngagementLevel = "engaged"
	EngagementHighly   EngagementLevel = "highly_engaged"
)

// EngagementScore weights follow-ups above plain searches.
func EngagementScore(m models.BehaviorMetrics) int {
	return m.TotalSearches*10 + m.FollowUpSearches*20 + m.TotalInteractions*2
}

// Engagement derives the tier. It is non-decreasing in every counter.
func Engagement(m models.BehaviorMetrics) EngagementLevel {
	switch score := EngagementScore(m); {
	case score > 200:
		return EngagementHighly
	case score > 100:
		return EngagementEngaged
	case score > 50:
		return EngagementModerate
	default:
		return EngagementNew
	}
}

func (l EngagementLevel) rank() int {
	switch l {
	case EngagementModerate:
		return 1
	case EngagementEngaged:
		return 2
	case EngagementHighly:
		return 3
	}
	return 0
}

// AtLeast reports whether l is the same tier as other or higher.
func (l EngagementLevel) AtLeast(other EngagementLevel) bool {
	return l.rank() >= other.rank()
}
