package models

// MediaType represents the kind of media an item points at
type MediaType string

const (
	MediaTypeVideo   MediaType = "video"
	MediaTypePodcast MediaType = "podcast"
)

// WatchStatus represents where an item is in the watch lifecycle.
// Pending is an intermediate state waiting for the user to confirm.
type WatchStatus string

const (
	WatchStatusUnwatched WatchStatus = "unwatched"
	WatchStatusPending   WatchStatus = "pending"
	WatchStatusWatched   WatchStatus = "watched"
)

// Priority represents the user-assigned priority of an item
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort weight of a priority (higher first)
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// LikeStatus represents the thumbs up/down state of an item
type LikeStatus string

const (
	LikeStatusNone    LikeStatus = "none"
	LikeStatusLike    LikeStatus = "like"
	LikeStatusDislike LikeStatus = "dislike"
)

// EventType identifies a state transition recorded in the event log
type EventType string

const (
	EventAdded          EventType = "added"
	EventWatched        EventType = "watched"
	EventUnwatched      EventType = "unwatched"
	EventFavorited      EventType = "favorited"
	EventUnfavorited    EventType = "unfavorited"
	EventRemoved        EventType = "removed"
	EventRestored       EventType = "restored"
	EventTagged         EventType = "tagged"
	EventPending        EventType = "pending"
	EventLiked          EventType = "liked"
	EventDisliked       EventType = "disliked"
	EventLikeReset      EventType = "like_reset"
	EventPriorityHigh   EventType = "priority_high"
	EventPriorityNormal EventType = "priority_normal"
	EventPriorityLow    EventType = "priority_low"
)

var knownEventTypes = map[EventType]struct{}{
	EventAdded: {}, EventWatched: {}, EventUnwatched: {}, EventFavorited: {},
	EventUnfavorited: {}, EventRemoved: {}, EventRestored: {}, EventTagged: {},
	EventPending: {}, EventLiked: {}, EventDisliked: {}, EventLikeReset: {},
	EventPriorityHigh: {}, EventPriorityNormal: {}, EventPriorityLow: {},
}

// Valid reports whether the event type is one the log accepts
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// EventForWatchStatus returns the event documenting a move to the given status
func EventForWatchStatus(s WatchStatus) EventType {
	switch s {
	case WatchStatusWatched:
		return EventWatched
	case WatchStatusPending:
		return EventPending
	default:
		return EventUnwatched
	}
}

// EventForPriority returns the event documenting a move to the given priority.
// None and medium both map to priority_normal.
func EventForPriority(p Priority) EventType {
	switch p {
	case PriorityHigh:
		return EventPriorityHigh
	case PriorityLow:
		return EventPriorityLow
	default:
		return EventPriorityNormal
	}
}

// EventForLike returns the event documenting a move to the given like status
func EventForLike(s LikeStatus) EventType {
	switch s {
	case LikeStatusLike:
		return EventLiked
	case LikeStatusDislike:
		return EventDisliked
	default:
		return EventLikeReset
	}
}
