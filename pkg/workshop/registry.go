package workshop

import (
	"maps"
	"strings"

	"github.com/wilhg/workshop/pkg/counters"
)

// Customer is a person or company served by the workshop.
type Customer struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
	Phone    string `json:"phone,omitempty"`
}

// Vehicle belongs to a customer.
type Vehicle struct {
	ID         uint64 `json:"id"`
	CustomerID uint64 `json:"customer_id"`
	Plate      string `json:"plate"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
}

// Registry holds customers and their vehicles.
type Registry struct {
	Customers map[uint64]Customer `json:"customers"`
	Vehicles  map[uint64]Vehicle  `json:"vehicles"`
}

func NewRegistry() *Registry {
	return &Registry{
		Customers: make(map[uint64]Customer),
		Vehicles:  make(map[uint64]Vehicle),
	}
}

func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	return &Registry{
		Customers: maps.Clone(r.Customers),
		Vehicles:  maps.Clone(r.Vehicles),
	}
}

// AddCustomer registers a customer and mints its id.
func (r *Registry) AddCustomer(ids counters.IDSource, name, document, phone string) (Customer, error) {
	if strings.TrimSpace(name) == "" {
		return Customer{}, invalid("name_required", "customer name is required")
	}
	if strings.TrimSpace(document) == "" {
		return Customer{}, invalid("document_required", "customer document is required")
	}
	c := Customer{ID: ids.Next(counters.KindCustomer), Name: name, Document: document, Phone: phone}
	r.Customers[c.ID] = c
	return c, nil
}

// AddVehicle registers a vehicle for an existing customer.
func (r *Registry) AddVehicle(ids counters.IDSource, customerID uint64, plate, model string, year int) (Vehicle, error) {
	if _, ok := r.Customers[customerID]; !ok {
		return Vehicle{}, notFound("customer", customerID)
	}
	if strings.TrimSpace(plate) == "" {
		return Vehicle{}, invalid("plate_required", "vehicle plate is required")
	}
	for _, v := range r.Vehicles {
		if strings.EqualFold(v.Plate, plate) {
			return Vehicle{}, invalid("conflict", "plate already registered")
		}
	}
	v := Vehicle{ID: ids.Next(counters.KindVehicle), CustomerID: customerID, Plate: strings.ToUpper(plate), Model: model, Year: year}
	r.Vehicles[v.ID] = v
	return v, nil
}

// VehiclesOf lists the vehicles owned by a customer.
func (r *Registry) VehiclesOf(customerID uint64) []Vehicle {
	var out []Vehicle
	for _, v := range r.Vehicles {
		if v.CustomerID == customerID {
			out = append(out, v)
		}
	}
	return out
}
