package workshop

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/wilhg/workshop/pkg/counters"
)

// OrderStatus tracks a service order through the workshop.
type OrderStatus string

const (
	OrderOpen       OrderStatus = "open"
	OrderInProgress OrderStatus = "in_progress"
	OrderDone       OrderStatus = "done"
)

// OrderItem is a product consumed by a service order.
type OrderItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ServiceOrder is a unit of work on a vehicle.
type ServiceOrder struct {
	ID          uint64      `json:"id"`
	VehicleID   uint64      `json:"vehicle_id"`
	MechanicID  uint64      `json:"mechanic_id"`
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
	OpenedAt    time.Time   `json:"opened_at"`
}

func (o ServiceOrder) Clone() ServiceOrder {
	o.Items = slices.Clone(o.Items)
	return o
}

// Scheduler holds the service orders.
type Scheduler struct {
	Orders map[uint64]ServiceOrder `json:"orders"`
}

func NewScheduler() *Scheduler {
	return &Scheduler{Orders: make(map[uint64]ServiceOrder)}
}

func (s *Scheduler) Clone() *Scheduler {
	if s == nil {
		return nil
	}
	out := &Scheduler{Orders: maps.Clone(s.Orders)}
	for id, o := range out.Orders {
		out.Orders[id] = o.Clone()
	}
	return out
}

// Open creates a service order in the open state.
func (s *Scheduler) Open(ids counters.IDSource, vehicleID, mechanicID uint64, description string, at time.Time) (ServiceOrder, error) {
	if strings.TrimSpace(description) == "" {
		return ServiceOrder{}, invalid("description_required", "order description is required")
	}
	o := ServiceOrder{
		ID:          ids.Next(counters.KindServiceOrder),
		VehicleID:   vehicleID,
		MechanicID:  mechanicID,
		Description: description,
		Status:      OrderOpen,
		OpenedAt:    at,
	}
	s.Orders[o.ID] = o
	return o, nil
}

// AddItem appends a consumed product to an order that is not done.
func (s *Scheduler) AddItem(orderID, productID uint64, quantity int) error {
	o, ok := s.Orders[orderID]
	if !ok {
		return notFound("service order", orderID)
	}
	if o.Status == OrderDone {
		return invalid("conflict", "order is already done")
	}
	if quantity <= 0 {
		return invalid("bad_quantity", "quantity must be > 0")
	}
	o.Items = append(o.Items, OrderItem{ProductID: productID, Quantity: quantity})
	s.Orders[orderID] = o
	return nil
}

// Advance moves an order to the given status. Done orders cannot move.
func (s *Scheduler) Advance(orderID uint64, status OrderStatus) error {
	o, ok := s.Orders[orderID]
	if !ok {
		return notFound("service order", orderID)
	}
	if o.Status == OrderDone {
		return invalid("conflict", "order is already done")
	}
	o.Status = status
	s.Orders[orderID] = o
	return nil
}
