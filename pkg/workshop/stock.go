package workshop

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/wilhg/workshop/pkg/counters"
)

// Product is a stocked part or consumable. Prices are in cents.
type Product struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
	UnitCents  int64  `json:"unit_cents"`
	SupplierID uint64 `json:"supplier_id,omitempty"`
}

// Supplier provides products.
type Supplier struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

// ShipmentLine is one product received in a shipment.
type ShipmentLine struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Shipment records goods received from a supplier.
type Shipment struct {
	ID         uint64         `json:"id"`
	SupplierID uint64         `json:"supplier_id"`
	Lines      []ShipmentLine `json:"lines"`
	ReceivedAt time.Time      `json:"received_at"`
}

func (s Shipment) Clone() Shipment {
	s.Lines = slices.Clone(s.Lines)
	return s
}

// Stock is the mutable subsystem tracked by the undo log.
type Stock struct {
	Products  map[uint64]Product  `json:"products"`
	Suppliers map[uint64]Supplier `json:"suppliers"`
	Shipments map[uint64]Shipment `json:"shipments"`
}

func NewStock() *Stock {
	return &Stock{
		Products:  make(map[uint64]Product),
		Suppliers: make(map[uint64]Supplier),
		Shipments: make(map[uint64]Shipment),
	}
}

// Clone returns a deep copy; shipments lines are copied too.
func (s *Stock) Clone() *Stock {
	if s == nil {
		return nil
	}
	out := &Stock{
		Products:  maps.Clone(s.Products),
		Suppliers: maps.Clone(s.Suppliers),
		Shipments: maps.Clone(s.Shipments),
	}
	for id, sh := range out.Shipments {
		out.Shipments[id] = sh.Clone()
	}
	return out
}

// AddSupplier registers a supplier.
func (s *Stock) AddSupplier(ids counters.IDSource, name, taxID string) (Supplier, error) {
	if strings.TrimSpace(name) == "" {
		return Supplier{}, invalid("name_required", "supplier name is required")
	}
	sup := Supplier{ID: ids.Next(counters.KindSupplier), Name: name, TaxID: taxID}
	s.Suppliers[sup.ID] = sup
	return sup, nil
}

// AddProduct registers a product with an initial quantity.
func (s *Stock) AddProduct(ids counters.IDSource, p Product) (Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, invalid("name_required", "product name is required")
	}
	if p.Quantity < 0 || p.UnitCents < 0 {
		return Product{}, invalid("bad_quantity", "quantity and price must be >= 0")
	}
	if p.SupplierID != 0 {
		if _, ok := s.Suppliers[p.SupplierID]; !ok {
			return Product{}, notFound("supplier", p.SupplierID)
		}
	}
	for _, existing := range s.Products {
		if p.SKU != "" && existing.SKU == p.SKU {
			return Product{}, invalid("conflict", "sku already registered")
		}
	}
	p.ID = ids.Next(counters.KindProduct)
	s.Products[p.ID] = p
	return p, nil
}

// Restock adds quantity to a product.
func (s *Stock) Restock(productID uint64, quantity int) error {
	p, ok := s.Products[productID]
	if !ok {
		return notFound("product", productID)
	}
	if quantity <= 0 {
		return invalid("bad_quantity", "quantity must be > 0")
	}
	p.Quantity += quantity
	s.Products[productID] = p
	return nil
}

// Withdraw removes quantity from a product; stock never goes negative.
func (s *Stock) Withdraw(productID uint64, quantity int) error {
	p, ok := s.Products[productID]
	if !ok {
		return notFound("product", productID)
	}
	if quantity <= 0 {
		return invalid("bad_quantity", "quantity must be > 0")
	}
	if p.Quantity < quantity {
		return invalid("insufficient_stock", "not enough units in stock")
	}
	p.Quantity -= quantity
	s.Products[productID] = p
	return nil
}

// RemoveProduct deletes a product from the catalog.
func (s *Stock) RemoveProduct(productID uint64) error {
	if _, ok := s.Products[productID]; !ok {
		return notFound("product", productID)
	}
	delete(s.Products, productID)
	return nil
}

// ReceiveShipment records a shipment and adds every line to stock.
// Either every line applies or none does.
func (s *Stock) ReceiveShipment(ids counters.IDSource, supplierID uint64, lines []ShipmentLine, at time.Time) (Shipment, error) {
	if _, ok := s.Suppliers[supplierID]; !ok {
		return Shipment{}, notFound("supplier", supplierID)
	}
	if len(lines) == 0 {
		return Shipment{}, invalid("empty_shipment", "shipment has no lines")
	}
	for _, l := range lines {
		if _, ok := s.Products[l.ProductID]; !ok {
			return Shipment{}, notFound("product", l.ProductID)
		}
		if l.Quantity <= 0 {
			return Shipment{}, invalid("bad_quantity", "quantity must be > 0")
		}
	}
	for _, l := range lines {
		p := s.Products[l.ProductID]
		p.Quantity += l.Quantity
		s.Products[l.ProductID] = p
	}
	sh := Shipment{ID: ids.Next(counters.KindShipment), SupplierID: supplierID, Lines: slices.Clone(lines), ReceivedAt: at}
	s.Shipments[sh.ID] = sh
	return sh, nil
}

// Valuation sums quantity times unit price across products.
func (s *Stock) Valuation() int64 {
	var total int64
	for _, p := range s.Products {
		total += int64(p.Quantity) * p.UnitCents
	}
	return total
}
