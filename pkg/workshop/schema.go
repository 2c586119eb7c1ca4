package workshop

import (
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// subsystem describes an object whose listed map fields must be present
// and non-null.
func subsystem(title string, maps ...string) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(maps))
	for _, m := range maps {
		props[m] = &jsonschema.Schema{Type: "object"}
	}
	return &jsonschema.Schema{Title: title, Type: "object", Required: maps, Properties: props}
}

// Schema describes the persisted shape of a Workshop: every subsystem and
// every entity map is a required, non-null object.
func Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:    "workshop",
		Type:     "object",
		Required: []string{"registry", "staff", "ledger", "scheduler", "stock"},
		Properties: map[string]*jsonschema.Schema{
			"registry":  subsystem("registry", "customers", "vehicles"),
			"staff":     subsystem("staff", "members"),
			"ledger":    subsystem("ledger", "invoices"),
			"scheduler": subsystem("scheduler", "orders"),
			"stock":     subsystem("stock", "products", "suppliers", "shipments"),
		},
	}
}

// Validate reports a workshop with a missing subsystem or entity map.
func (w *Workshop) Validate() error {
	if w == nil {
		return errors.New("workshop is nil")
	}
	var errs []error
	check := func(name string, missing bool) {
		if missing {
			errs = append(errs, errors.New(name+" is missing"))
		}
	}
	check("registry", w.Registry == nil)
	if w.Registry != nil {
		check("registry.customers", w.Registry.Customers == nil)
		check("registry.vehicles", w.Registry.Vehicles == nil)
	}
	check("staff", w.Staff == nil)
	if w.Staff != nil {
		check("staff.members", w.Staff.Members == nil)
	}
	check("ledger", w.Ledger == nil)
	if w.Ledger != nil {
		check("ledger.invoices", w.Ledger.Invoices == nil)
	}
	check("scheduler", w.Scheduler == nil)
	if w.Scheduler != nil {
		check("scheduler.orders", w.Scheduler.Orders == nil)
	}
	check("stock", w.Stock == nil)
	if w.Stock != nil {
		check("stock.products", w.Stock.Products == nil)
		check("stock.suppliers", w.Stock.Suppliers == nil)
		check("stock.shipments", w.Stock.Shipments == nil)
	}
	return errors.Join(errs...)
}
