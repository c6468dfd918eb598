package settings

import "time"

// PrinterSettings is an administrator-managed printer row. At most one row is default.
type PrinterSettings struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	IsDefault   bool      `gorm:"not null;index" json:"is_default"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
}

// TableName overrides the default gorm table name.
func (PrinterSettings) TableName() string {
	return "printer_settings"
}

// NetworkInterface is an administrator-managed interface row. At most one row is default.
type NetworkInterface struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	IPAddress   *string   `gorm:"size:45" json:"ip_address"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	IsDefault   bool      `gorm:"not null;index" json:"is_default"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
}

// TableName overrides the default gorm table name.
func (NetworkInterface) TableName() string {
	return "network_interfaces"
}

// PrinterPatch carries the fields to change on a printer row; nil leaves a field untouched.
type PrinterPatch struct {
	Name        *string
	IsActive    *bool
	IsDefault   *bool
	Description *string
}

// InterfacePatch carries the fields to change on an interface row; nil leaves a field untouched.
// ClearIP resets the stored address to null.
type InterfacePatch struct {
	Name        *string
	IPAddress   *string
	ClearIP     bool
	IsActive    *bool
	IsDefault   *bool
	Description *string
}

// Models lists the gorm models owned by this package.
func Models() []any {
	return []any{&PrinterSettings{}, &NetworkInterface{}}
}
