package service

import "github.com/civicdesk/civicdesk/internal/models"

var transitions = map[models.Status][]models.Status{
	models.StatusReceived:       {models.StatusAIClassified, models.StatusPendingTriage, models.StatusDuplicate, models.StatusRejected},
	models.StatusAIClassified:   {models.StatusPendingTriage, models.StatusAssigned, models.StatusDuplicate, models.StatusRejected},
	models.StatusPendingTriage:  {models.StatusAssigned, models.StatusNeedMoreInfo, models.StatusDuplicate, models.StatusRejected},
	models.StatusAssigned:       {models.StatusInProgress, models.StatusNeedMoreInfo, models.StatusEscalated},
	models.StatusInProgress:     {models.StatusResolved, models.StatusEscalated, models.StatusNeedMoreInfo},
	models.StatusResolved:       {models.StatusVerifiedClosed, models.StatusInProgress},
	models.StatusVerifiedClosed: nil,
	models.StatusNeedMoreInfo:   {models.StatusPendingTriage, models.StatusAssigned, models.StatusRejected},
	models.StatusDuplicate:      nil,
	models.StatusRejected:       nil,
	models.StatusEscalated:      {models.StatusAssigned, models.StatusInProgress, models.StatusResolved},
}

func ValidStatus(s models.Status) bool {
	_, ok := transitions[s]
	return ok
}

func IsTerminal(s models.Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []models.Status {
	return []models.Status{
		models.StatusReceived,
		models.StatusAIClassified,
		models.StatusPendingTriage,
		models.StatusAssigned,
		models.StatusInProgress,
		models.StatusResolved,
		models.StatusVerifiedClosed,
		models.StatusNeedMoreInfo,
		models.StatusDuplicate,
		models.StatusRejected,
		models.StatusEscalated,
	}
}
