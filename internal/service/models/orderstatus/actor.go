package orderstatus

import (
	"fmt"
	"strings"
)

// Actor is the role of whoever asks for a status change.
type Actor string

const (
	ActorRestaurant Actor = "restaurant"
	ActorCourier    Actor = "courier"
	ActorCustomer   Actor = "customer"
	ActorAdmin      Actor = "admin"
	ActorSystem     Actor = "system"
)

// ParseActor accepts a role name in any case. An empty string is the system actor.
func ParseActor(s string) (Actor, error) {
	switch a := Actor(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActorSystem, nil
	case ActorRestaurant, ActorCourier, ActorCustomer, ActorAdmin, ActorSystem:
		return a, nil
	default:
		return "", fmt.Errorf("unknown actor role %q", s)
	}
}

// permitted lists, per role, the target statuses that role may request.
// Roles absent from the map may request any target the table allows.
var permitted = map[Actor]map[Status]struct{}{
	ActorRestaurant: setOf(Accepted, Rejected, Preparing, Ready, Cancelled),
	ActorCourier:    setOf(OutForDelivery, Delivered),
	ActorCustomer:   setOf(Cancelled),
}

func setOf(statuses ...Status) map[Status]struct{} {
	set := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}

	return set
}

func (a Actor) mayRequest(current, requested Status) bool {
	allowed, restricted := permitted[a]
	if !restricted {
		return true
	}
	if _, ok := allowed[requested]; !ok {
		return false
	}
	// customers can only withdraw an order nobody has accepted yet
	if a == ActorCustomer {
		return current == Pending
	}

	return true
}
