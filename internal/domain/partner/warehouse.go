package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// WarehouseStatus represents the operational status of a warehouse
type WarehouseStatus string

const (
	WarehouseStatusActive   WarehouseStatus = "ACTIVE"
	WarehouseStatusInactive WarehouseStatus = "INACTIVE"
)

// Warehouse is a physical site holding stock. Allocation treats a
// warehouse as one possible scope; its locations are finer grained scopes.
type Warehouse struct {
	shared.BaseAggregateRoot
	Code    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name    string          `gorm:"type:varchar(200);not null"`
	Address string          `gorm:"type:varchar(500)"`
	Status  WarehouseStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`

	Locations []Location `gorm:"foreignKey:WarehouseID;references:ID"`
}

// TableName returns the table name for GORM
func (Warehouse) TableName() string {
	return "warehouses"
}

// NewWarehouse creates a new warehouse
func NewWarehouse(code, name, address string) (*Warehouse, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Warehouse code is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Warehouse name is required")
	}

	return &Warehouse{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Address:           address,
		Status:            WarehouseStatusActive,
	}, nil
}

// IsActive returns true if the warehouse is operational
func (w *Warehouse) IsActive() bool {
	return w.Status == WarehouseStatusActive
}

// Deactivate takes the warehouse out of operation
func (w *Warehouse) Deactivate() {
	w.Status = WarehouseStatusInactive
	w.UpdatedAt = time.Now()
	w.IncrementVersion()
}

// Activate returns the warehouse to operation
func (w *Warehouse) Activate() {
	w.Status = WarehouseStatusActive
	w.UpdatedAt = time.Now()
	w.IncrementVersion()
}

// AddLocation adds a storage location to the warehouse
func (w *Warehouse) AddLocation(code, name string) (*Location, error) {
	loc, err := NewLocation(w.ID, code, name)
	if err != nil {
		return nil, err
	}
	w.Locations = append(w.Locations, *loc)
	w.UpdatedAt = time.Now()
	return loc, nil
}

// Location is a storage position inside a warehouse (zone, aisle, bin)
type Location struct {
	shared.BaseEntity
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code        string    `gorm:"type:varchar(50);not null;index"`
	Name        string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (Location) TableName() string {
	return "locations"
}

// NewLocation creates a new storage location
func NewLocation(warehouseID uuid.UUID, code, name string) (*Location, error) {
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Location code is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Location name is required")
	}

	return &Location{
		BaseEntity:  shared.NewBaseEntity(),
		WarehouseID: warehouseID,
		Code:        code,
		Name:        name,
	}, nil
}
