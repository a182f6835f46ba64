package ridesync

import "github.com/example/ride-tracker/internal/models"

// statusRank orders the single forward path of the ride lifecycle.
// cancelled is handled separately: legal from any non-terminal state.
var statusRank = map[models.RideStatus]int{
	models.StatusRequested: 0,
	models.StatusSearching: 1,
	models.StatusAccepted:  2,
	models.StatusArrived:   3,
	models.StatusOngoing:   4,
	models.StatusCompleted: 5,
}

// legalTransition reports whether moving from -> to is allowed. The empty
// status means "nothing applied yet", from which any known status is legal.
func legalTransition(from, to models.RideStatus) bool {
	if !to.Known() {
		return false
	}
	if from == "" {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == models.StatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}
