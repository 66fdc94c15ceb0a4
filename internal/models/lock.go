package models

// AppLock is a lease held by one explorer instance. The auto scan loop only
// runs on the instance holding the lease when several share a database.
type AppLock struct {
	LockName   string `gorm:"primaryKey;size:255"`
	InstanceID string `gorm:"size:255;not null"`
	// AcquiredAt and ExpiresAt are unix milliseconds.
	AcquiredAt int64 `gorm:"not null;index"`
	ExpiresAt  int64 `gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (AppLock) TableName() string {
	return "app_locks"
}
